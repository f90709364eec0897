package main

import (
	"errors"

	"github.com/mr-karan/caskdb/pkg/cask"
	"github.com/tidwall/redcon"
)

func (app *App) ping(conn redcon.Conn, cmd redcon.Command) {
	conn.WriteString("PONG")
}

func (app *App) quit(conn redcon.Conn, cmd redcon.Command) {
	conn.WriteString("OK")
	conn.Close()
}

func (app *App) set(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) != 3 {
		conn.WriteError("ERR wrong number of arguments for '" + string(cmd.Args[0]) + "' command")
		return
	}

	var (
		key = string(cmd.Args[1])
		val = cmd.Args[2]
	)
	if err := app.cask.Put(key, val); err != nil {
		app.lo.Error("error storing key", "key", key, "error", err)
		conn.WriteError("ERR " + err.Error())
		return
	}

	conn.WriteString("OK")
}

func (app *App) get(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) != 2 {
		conn.WriteError("ERR wrong number of arguments for '" + string(cmd.Args[0]) + "' command")
		return
	}
	var (
		key = string(cmd.Args[1])
	)
	val, err := app.cask.Get(key)
	if err != nil {
		if errors.Is(err, cask.ErrKeyNotFound) {
			conn.WriteNull()
			return
		}
		app.lo.Error("error fetching key", "key", key, "error", err)
		conn.WriteError("ERR " + err.Error())
		return
	}

	conn.WriteBulk(val)
}
