package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/joacortez/kai-go/internal/agent"
	"github.com/joacortez/kai-go/internal/config"
	"github.com/joacortez/kai-go/internal/gcal"
	"github.com/joacortez/kai-go/internal/history"
	"github.com/joacortez/kai-go/internal/llm"
	"github.com/joacortez/kai-go/internal/logger"
	"github.com/joacortez/kai-go/internal/session"
	"github.com/joacortez/kai-go/pkg/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	llmClient := llm.NewClient(cfg.LLM)

	store, err := history.NewStore(cfg.Session.DBPath)
	if err != nil {
		logger.L.Warn("session store degraded to memory", "error", err)
	}
	defer store.Close()

	state := session.NewState(cfg.Session.ID)
	if persisted := store.Events(state.SessionID()); len(persisted) > 0 {
		state.Restore(persisted)
	}

	// Calendar failures leave KAI running without calendar capability
	// instead of exiting.
	var delegate *agent.Agent
	if calendarClient := setupCalendar(cfg.Calendar); calendarClient != nil {
		toolkit := tools.NewCalendarToolkit(calendarClient, cfg.Calendar.Timezone, state)
		delegate = agent.NewDelegate(llmClient, cfg.LLM, toolkit)
	}

	ctx := context.Background()
	extraTools := agent.DiscoverMCPTools(ctx, cfg.MCPServers)

	coordinator := agent.NewCoordinator(llmClient, cfg, delegate, state, store, extraTools)

	if cfg.Server.Enabled {
		go serveHTTP(cfg.Server, coordinator)
	}

	runREPL(ctx, coordinator)
}

// setupCalendar builds the calendar client, running the installed-app consent
// flow on first use. Returns nil when calendar capability is unavailable.
func setupCalendar(cfg config.CalendarConfig) *gcal.Client {
	client, err := gcal.NewClient(cfg)
	if err != nil {
		logger.L.Error("calendar authentication failed", "category", gcal.CategoryOf(err), "error", err)
		return nil
	}

	if client.Authenticated() {
		logger.L.Info("Google Calendar authentication successful")
		return client
	}

	fmt.Printf("Abrí este link para autorizar el acceso al calendario:\n%s\n", client.AuthURL())
	fmt.Print("Pegá el código de autorización: ")
	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		logger.L.Error("could not read authorization code", "error", err)
		return nil
	}
	if err := client.ExchangeCode(context.Background(), strings.TrimSpace(code)); err != nil {
		logger.L.Error("calendar authorization failed", "category", gcal.CategoryOf(err), "error", err)
		return nil
	}

	logger.L.Info("Google Calendar authentication successful")
	return client
}

// exitKeywords end the interactive session, case-insensitively.
var exitKeywords = []string{"exit", "quit", "chau", "salir"}

func runREPL(ctx context.Context, coordinator *agent.Coordinator) {
	fmt.Println("\n🚀 KAI está listo para charlar! (escribí 'exit' o 'quit' para salir)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> Joa: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if isExitKeyword(input) {
			break
		}

		response, err := coordinator.Respond(ctx, input)
		if err != nil {
			fmt.Printf("\n❌ Error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n", response)
	}

	fmt.Println("\n¡Hasta luego! 👋")
}

func isExitKeyword(input string) bool {
	lowered := strings.ToLower(input)
	for _, kw := range exitKeywords {
		if lowered == kw {
			return true
		}
	}
	return false
}

// serveHTTP exposes the coordinator on a plain inference endpoint, the same
// surface as the REPL.
func serveHTTP(cfg config.ServerConfig, coordinator *agent.Coordinator) {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.L.Error("read body error", "error", err)
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		logger.L.Info("inference request", "body", string(body))

		response, err := coordinator.Respond(r.Context(), string(body))
		if err != nil {
			logger.L.Error("process error", "error", err, "body", string(body))
			http.Error(w, "failed to process request", http.StatusInternalServerError)
			return
		}

		if _, err := w.Write([]byte(response)); err != nil {
			logger.L.Warn("write response error", "error", err)
		}
	})

	serverAddr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	logger.L.Info("starting server", "address", serverAddr)
	if err := http.ListenAndServe(serverAddr, mux); err != nil {
		logger.L.Error("failed to start server", "error", err)
	}
}
