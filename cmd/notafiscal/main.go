package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/nota-fiscal/internal/extraction"
	"github.com/zombor/nota-fiscal/internal/invoice"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// fileResult is one entry of the output when several files are extracted
type fileResult struct {
	Path   string             `json:"path"`
	Result *extraction.Result `json:"result"`
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("notafiscal")
	var (
		rendererName = fs.StringLong("renderer", "mupdf", "PDF text renderer: 'mupdf' or 'pdf'")
		serve        = fs.BoolLong("serve", "Run the HTTP server instead of extracting files")
		port         = fs.IntLong("port", 8080, "HTTP server port")
		dbPath       = fs.StringLong("db", "nota-fiscal.db", "Database file path")
		storagePath  = fs.StringLong("storage", "./notas", "Storage directory path")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		debug        = fs.BoolLong("debug", "Enable debug logging")
		_            = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("NOTA_FISCAL"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	renderer, err := extraction.NewRenderer(*rendererName)
	if err != nil {
		slog.Error("Invalid renderer", "renderer", *rendererName, "valid", "mupdf or pdf")
		os.Exit(1)
	}
	extractor := extraction.NewExtractor(renderer)

	if !*serve {
		paths := fs.GetArgs()
		if len(paths) == 0 {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
			fmt.Fprintf(os.Stderr, "error: no PDF files given (use --serve to run the server)\n")
			os.Exit(1)
		}
		if err := extractFiles(os.Stdout, extractor, paths); err != nil {
			slog.Error("Extraction failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := invoice.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := invoice.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := invoice.NewService(db, extractor, store)
	server := invoice.NewServer(service, invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "renderer", *rendererName)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// extractFiles writes the extraction result of each path to w as indented JSON.
// A single path prints the result object; several print an array of path/result pairs.
func extractFiles(w io.Writer, extractor *extraction.Extractor, paths []string) error {
	results := make([]fileResult, 0, len(paths))
	for _, path := range paths {
		result, err := extractor.Extract(path)
		if err != nil {
			return fmt.Errorf("extracting %s: %w", path, err)
		}
		results = append(results, fileResult{Path: path, Result: result})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if len(results) == 1 {
		return enc.Encode(results[0].Result)
	}
	return enc.Encode(results)
}
