package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quizdeck/internal/adapter"
	catalogclient "github.com/mmcdole/quizdeck/internal/adapter/catalog"
	chatclient "github.com/mmcdole/quizdeck/internal/adapter/chat"
	"github.com/mmcdole/quizdeck/internal/catalog"
	"github.com/mmcdole/quizdeck/internal/chat"
	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/mmcdole/quizdeck/internal/loader"
	"github.com/mmcdole/quizdeck/internal/navigator"
	"github.com/mmcdole/quizdeck/internal/progress"
	"github.com/mmcdole/quizdeck/internal/scheduler"
	"github.com/mmcdole/quizdeck/internal/search"
	"github.com/mmcdole/quizdeck/internal/store"
	"github.com/mmcdole/quizdeck/internal/tui"
	"github.com/mmcdole/quizdeck/internal/tui/styles"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                    \r"

func main() {
	var showVersion, setup, clearCache bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&setup, "setup", false, "run the setup flow again")
	flag.BoolVar(&clearCache, "clear-cache", false, "delete saved cards, progress and chats, then exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("quizdeck %s\n", Version)
		return
	}

	if clearCache {
		if err := adapter.ClearCache(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Cache cleared")
		return
	}

	if err := run(setup); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(forceSetup bool) error {
	// Load configuration
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, closeLog, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
		closeLog = func() error { return nil }
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting quizdeck", "version", Version)

	if forceSetup || !cfg.IsConfigured() {
		return runSetupFlow(cfg, logger)
	}

	// Local store, scoped to the catalog URL
	st, err := store.NewBoltStore(adapter.GetCachePath(), cfg.Catalog.URL)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	tracker, err := progress.Open(st, logger)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			logger.Error("failed to save progress on exit", "error", err)
		}
	}()

	// Catalog: remote when configured, snapshot and seed files otherwise
	var client domain.CatalogClient
	var remote *catalogclient.Client
	if cfg.Catalog.URL != "" {
		remote = catalogclient.NewClient(cfg.Catalog.URL, cfg.Catalog.Token, logger)
		client = remote
	}
	catalogSvc := catalog.NewService(client, st, logger)
	catalogSvc.SetPageSize(cfg.Catalog.PageSize)
	if cfg.Catalog.SeedDir != "" {
		loadSeed(catalogSvc, cfg.Catalog.SeedDir, logger)
	}

	nav := navigator.New(catalogSvc, tracker, navigator.Options{
		MarkViewedOnBackward: cfg.Deck.MarkViewedOnBackward,
		AutoAdvance:          cfg.Deck.AutoAdvance,
		BatchSize:            cfg.Deck.BatchSize,
	}, logger)
	defer nav.Close()

	var chatClient domain.ChatClient
	if cfg.HasChat() {
		chatClient = chatclient.NewClient(chatclient.Options{
			BaseURL:     cfg.Chat.BaseURL,
			APIKey:      cfg.Chat.APIKey,
			Model:       cfg.Chat.Model,
			MaxTokens:   cfg.Chat.MaxTokens,
			Temperature: cfg.Chat.Temperature,
			TopP:        cfg.Chat.TopP,
		}, logger)
	}
	chatSvc := chat.NewService(chatClient, st, cfg.Chat.Instruction, logger)
	searchSvc := search.NewService(catalogSvc, tracker, logger)

	// Poll for new catalog versions
	observer := tui.NewVersionObserver()
	if remote != nil && cfg.Catalog.PollInterval > 0 {
		sched := scheduler.New(remote, nav, observer.OnNewer, logger)
		if err := sched.Start(cfg.Catalog.PollInterval); err != nil {
			logger.Error("failed to start version polling", "error", err)
		} else {
			defer sched.Stop()
		}
	}

	markdownStyle := "light"
	if lipgloss.HasDarkBackground() {
		markdownStyle = "dark"
	}

	model := tui.NewModel(nav, chatSvc, searchSvc, tui.Options{
		TransitionDelay: cfg.Deck.TransitionDelay,
		Versions:        observer.Versions(),
		MarkdownStyle:   markdownStyle,
		StreamChat:      cfg.Chat.Stream,
	})

	// Run the TUI
	p := tea.NewProgram(model, tea.WithAltScreen())

	logger.Info("starting TUI", "source", catalogSvc.Source().String())

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// loadSeed installs the bundled question files as the last-resort catalog
func loadSeed(svc *catalog.Service, dir string, logger *slog.Logger) {
	path, err := adapter.ExpandPath(dir)
	if err != nil {
		logger.Warn("invalid seed dir", "dir", dir, "error", err)
		return
	}
	items, err := loader.LoadDir(path)
	if err != nil {
		logger.Warn("failed to load seed files", "dir", path, "error", err)
		return
	}
	svc.SetSeed(items)
	logger.Info("seed loaded", "dir", path, "items", len(items))
}

// runSetupFlow handles the initial setup when not configured
func runSetupFlow(cfg *adapter.Config, logger *slog.Logger) error {
	fmt.Println()
	fmt.Println("Welcome to quizdeck!")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	for {
		input, err := prompt(reader, "Catalog URL (leave empty to use local files only): ")
		if err != nil {
			return err
		}
		cfg.Catalog.URL = input
		if input == "" {
			break
		}

		token, err := promptHidden("Catalog token (hidden, empty for none): ")
		if err != nil {
			return err
		}
		cfg.Catalog.Token = token

		fmt.Println()
		if err := verifyCatalogWithSpinner(cfg.Catalog.URL, cfg.Catalog.Token, logger); err != nil {
			fmt.Printf("\n✗ Could not reach the catalog: %v\n", err)
			fmt.Println("Please check the URL and token and try again.")
			fmt.Println()
			continue
		}
		break
	}

	seedPrompt := "Folder with question files (optional): "
	if cfg.Catalog.URL == "" {
		seedPrompt = "Folder with question files: "
	}
	for {
		dir, err := prompt(reader, seedPrompt)
		if err != nil {
			return err
		}
		if dir == "" && cfg.Catalog.URL == "" {
			fmt.Println("A catalog URL or a question folder is required.")
			continue
		}
		if dir != "" {
			path, err := adapter.ExpandPath(dir)
			if err == nil {
				var items []domain.Item
				items, err = loader.LoadDir(path)
				if err == nil && len(items) == 0 {
					err = errors.New("no questions found")
				}
				if err == nil {
					fmt.Printf("✓ Found %d questions\n", len(items))
				}
			}
			if err != nil {
				fmt.Printf("✗ %v\n", err)
				continue
			}
		}
		cfg.Catalog.SeedDir = dir
		break
	}

	fmt.Println()
	apiKey, err := promptHidden("Chat API key for follow-up questions (hidden, empty to skip): ")
	if err != nil {
		return err
	}
	if apiKey != "" {
		cfg.Chat.APIKey = apiKey
	}

	if err := adapter.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Configuration saved!")
	fmt.Println()
	fmt.Println("Run quizdeck again to start browsing.")

	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

// promptHidden reads a secret without echoing it
func promptHidden(label string) (string, error) {
	fmt.Print(label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // Add newline after hidden input
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// verifyCatalogWithSpinner checks the catalog answers with a visual spinner
func verifyCatalogWithSpinner(url, token string, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	type result struct {
		version  int
		maxIndex int
		err      error
	}
	resultCh := make(chan result, 1)

	go func() {
		client := catalogclient.NewClient(url, token, logger)
		version, err := client.FetchVersion(ctx)
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		maxIndex, err := client.FetchMaxIndex(ctx)
		resultCh <- result{version: version, maxIndex: maxIndex, err: err}
	}()

	frame := 0
	fmt.Printf("\r%s Checking catalog...", styles.SpinnerFrames[frame])

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-resultCh:
			fmt.Print(clearSpinnerLine)
			if res.err != nil {
				return res.err
			}
			fmt.Printf("✓ Catalog version %d with %d questions\n", res.version, res.maxIndex+1)
			return nil

		case <-ticker.C:
			frame++
			fmt.Printf("\r%s Checking catalog...", styles.SpinnerFrames[frame%len(styles.SpinnerFrames)])

		case <-ctx.Done():
			fmt.Print(clearSpinnerLine)
			return fmt.Errorf("catalog check timed out")
		}
	}
}
