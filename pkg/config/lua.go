package config

import (
	"fmt"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
)

// loadLua runs a Lua scenario file and maps the table it returns onto
// config. Keys use snake_case (rtt_ms, loss_pct, at_ms, ...); fields the
// table leaves out keep their current values.
//
//	return {
//	  sim = { rtt_ms = 120, loss_pct = 10, mss = 1200, cwnd0 = 4 },
//	  scenario = { steps = { { op = "handshake" }, { op = "send", at_ms = 200, bytes = 32768 } } },
//	}
func loadLua(path string, config *Config) error {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoFile(path); err != nil {
		return err
	}

	lv := L.Get(-1)
	table, ok := lv.(*lua.LTable)
	if !ok {
		return fmt.Errorf("lua file did not return a table")
	}

	if err := gluamapper.Map(table, config); err != nil {
		return err
	}
	return nil
}
