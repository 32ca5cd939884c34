package globals

import "github.com/hashicorp/go-hclog"

var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "code-connect",
	Level: hclog.LevelFromString("INFO"),
})
