package logger_test

import (
	"fmt"
	"os"

	"github.com/ethan/acip-discovery/pkg/logger"
)

// Example showing basic logger usage
func ExampleLogger_basic() {
	// Create logger with default config
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelInfo
	cfg.Format = logger.FormatText

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	// Basic logging
	log.Info("server started", "version", "1.0.0")
	log.Warn("deprecated packet type used", "type", 0x21)
	log.Error("failed to bind listener", "error", "address in use")
}

// Example showing debug category usage
func ExampleLogger_categories() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelDebug
	cfg.EnableCategory(logger.DebugSession)
	cfg.EnableCategory(logger.DebugAuth)

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	// Session debugging (only logged if DebugSession enabled)
	log.DebugSession("participant joined", "participant_id", "deadbeef")

	// Auth debugging (only logged if DebugAuth enabled)
	log.DebugAuth("signature verified", "type", "SESSION_JOIN")

	// Frame debugging (not enabled here, so this is a no-op)
	log.DebugFrame(0x01, 128, 0xdeadbeef)
}

// Example showing command-line flags integration
func ExampleFlags() {
	// In main.go:
	// import (
	//     "flag"
	//     "github.com/ethan/acip-discovery/pkg/logger"
	// )
	//
	// fs := flag.NewFlagSet("acipd", flag.ExitOnError)
	// logFlags := logger.RegisterFlags(fs)
	// fs.Parse(os.Args[1:])
	//
	// logConfig, _ := logFlags.ToConfig()
	// log, _ := logger.New(logConfig)
	// defer log.Close()

	fmt.Println("See cmd/acipd/main.go for complete example")
}

// Example showing JSON format output
func ExampleLogger_json() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelInfo
	cfg.Format = logger.FormatJSON
	cfg.OutputFile = "acipd.json"

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()
	defer os.Remove("acipd.json") // Cleanup

	log.Info("session created",
		"session_string", "swift-river-mountain",
		"max_participants", 4)

	// Output will be in JSON format:
	// {"time":"...","level":"INFO","msg":"session created","session_string":"swift-river-mountain","max_participants":4}
}

// Example showing conditional debug logging
func ExampleLogger_conditional() {
	cfg := logger.NewConfig()
	cfg.EnableCategory(logger.DebugRing)

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	// This will only execute if DebugRing is enabled
	// No performance overhead if disabled
	payload := make([]byte, 64)
	log.DebugPayload(logger.DebugRing, "NETWORK_QUALITY payload", payload)

	// Category methods automatically check if enabled
	// No manual check needed - zero cost if disabled
	log.DebugRing("round ticked", "round", 3)
}
