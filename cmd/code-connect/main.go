package main

import (
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
	"github.com/thatrasunil/code-connect/config"
	"github.com/thatrasunil/code-connect/globals"
	"github.com/thatrasunil/code-connect/runner"
	"github.com/thatrasunil/code-connect/session"
	"github.com/thatrasunil/code-connect/store"
	"github.com/thatrasunil/code-connect/ws"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key (optional)")

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
)

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	roomStore, err := store.NewRoomStore(globalConfig)
	if err != nil {
		panic(err)
	}
	defer roomStore.Close()

	var presence session.PresenceTable
	switch globalConfig.PresenceConfig.Type {
	case "", "memory":
		presence = session.NewMemoryPresence()
	case "redis":
		presence, err = session.NewRedisPresence(
			globalConfig.PresenceConfig.Address,
			globalConfig.PresenceConfig.Password,
			globalConfig.PresenceConfig.DB,
		)
		if err != nil {
			panic(err)
		}
	default:
		panic("invalid presence type " + globalConfig.PresenceConfig.Type)
	}

	hub := ws.NewHub()
	engine := session.NewEngine(globalConfig, roomStore, presence, hub)
	stopHeartbeat := hub.StartHeartbeat(engine.Stats)
	defer stopHeartbeat()

	codeRunner := runner.NewPistonRunner(
		globalConfig.RunnerConfig.URL,
		time.Duration(globalConfig.RunnerConfig.TimeoutSeconds)*time.Second,
	)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		globals.AppLogger.Info("interrupted, shutting down")
		stopHeartbeat()
		roomStore.Close()
		os.Exit(0)
	}()

	router := mux.NewRouter()
	router.HandleFunc("/ws", websocketHandler(hub, engine)).Methods(http.MethodGet)
	router.HandleFunc("/api/execute", executeHandler(codeRunner)).Methods(http.MethodPost)
	http.Handle("/", router)

	globals.AppLogger.Info("listening", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, nil)
	} else {
		err = http.ListenAndServe(*addr, nil)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}

// websocketHandler upgrades the connection and runs the read/write loops.
// Room membership is established afterwards via join-room events.
func websocketHandler(hub *ws.Hub, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			globals.AppLogger.Error("websocket upgrade error", "error", err)
			return
		}
		client := ws.NewClient(hub, engine, conn)
		globals.AppLogger.Debug("new connection", "conn", client.Id())
		go client.WriteLoop()
		client.ReadLoop()
	}
}

type executeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin"`
}

type executeResult struct {
	Actual string `json:"actual"`
	Error  string `json:"error"`
}

type executeResponse struct {
	Results   []executeResult `json:"results"`
	ElapsedMs int64           `json:"elapsedMs"`
}

// executeHandler forwards code to the external execution API and reshapes
// the result for the editor frontend.
func executeHandler(codeRunner runner.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := executeRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		res, err := codeRunner.Run(r.Context(), req.Code, req.Language, req.Stdin)
		if err != nil {
			globals.AppLogger.Error("execution failed", "error", err)
			http.Error(w, "failed to connect to execution service", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(executeResponse{
			Results:   []executeResult{{Actual: res.Stdout, Error: res.Stderr}},
			ElapsedMs: res.Elapsed.Milliseconds(),
		})
	}
}
