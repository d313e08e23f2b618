// Command agentctl is a terminal demo of the Agent Loop: it reads
// prompts from stdin one line at a time, runs one CreateResponse call
// per line against a dependency-free echo model, and renders each
// response's text followed by a token-usage bar. It has no real model provider wired in — providers are outside
// this module's scope (see DESIGN.md) — so it exists to give a human a
// way to see the loop, the config loader, and the token counter run
// end to end without a live Ollama/API connection.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	"github.com/localllm/agentcore"
	"github.com/localllm/agentcore/config"
	"github.com/localllm/agentcore/llm"
	"github.com/localllm/agentcore/slogger"
)

var (
	headerStyle   = color.New(color.FgCyan, color.Bold)
	promptStyle   = color.New(color.FgMagenta, color.Bold)
	responseStyle = color.New(color.FgGreen)
	barFillStyle  = color.New(color.FgCyan)
	barEmptyStyle = color.New(color.FgHiBlack)
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config document (optional)")
	contextSize := flag.Int("context-size", 4096, "context window in tokens, overridden by config's llm.contextSize")
	flag.Parse()

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.ParseFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "agentctl: failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "agentctl: invalid config: %v\n", err)
		os.Exit(1)
	}

	effectiveContext := cfg.LLM.ContextSize
	if effectiveContext == 0 {
		effectiveContext = *contextSize
	}

	headerStyle.Println("agentctl — Agent Loop demo")
	fmt.Printf("compression strategy: %s, threshold: %.2f, context: %d tokens\n\n",
		cfg.Compression.Strategy, cfg.Compression.Threshold, effectiveContext)

	model := &echoModel{}
	agent, err := agentcore.NewAgent(agentcore.AgentOptions{
		Name:         "agentctl",
		SystemPrompt: "You are a terminal demo assistant.",
		Model:        model,
		Logger:       slogger.DefaultLogger,
		Compaction: &agentcore.CompactionConfig{
			Enabled:               cfg.Compression.Strategy != "",
			ContextTokenThreshold: int(cfg.Compression.Threshold * float64(effectiveContext)),
			Model:                 model,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentctl: failed to build agent: %v\n", err)
		os.Exit(1)
	}

	counter := agentcore.NewTokenCounter()
	reader := bufio.NewScanner(os.Stdin)
	promptStyle.Print("> ")
	for reader.Scan() {
		prompt := reader.Text()
		if strings.TrimSpace(prompt) == "" {
			promptStyle.Print("> ")
			continue
		}

		resp, err := agent.CreateResponse(context.Background(),
			agentcore.WithMessages(llm.NewUserTextMessage(prompt)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "agentctl: %v\n", err)
			promptStyle.Print("> ")
			continue
		}

		text := resp.OutputText()
		responseStyle.Println(text)

		used := counter.Count("", prompt) + counter.Count("", text)
		printUsageBar(used, effectiveContext)
		promptStyle.Print("> ")
	}
}

// printUsageBar renders a fixed-width progress bar showing used/limit
// tokens, using go-runewidth so the bar's printed width matches its
// intended column count regardless of what glyphs fill it.
func printUsageBar(used, limit int) {
	const width = 40
	fraction := 0.0
	if limit > 0 {
		fraction = float64(used) / float64(limit)
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * width)

	var b strings.Builder
	b.WriteString(barFillStyle.Sprint(strings.Repeat("█", filled)))
	b.WriteString(barEmptyStyle.Sprint(strings.Repeat("░", width-filled)))
	bar := b.String()

	// runewidth measures the bar's visible glyph count rather than its
	// byte length, since the fill/empty glyphs and color escapes are
	// each a different byte width.
	visible := runewidth.StringWidth(stripANSI(bar))
	label := fmt.Sprintf(" %d/%d tokens (%d cols)", used, limit, visible)
	fmt.Printf("[%s]%s\n", bar, label)
}

// stripANSI removes color escape codes so runewidth measures only the
// bar's visible glyphs.
func stripANSI(text string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range text {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// echoModel is a dependency-free llm.LLM that echoes the last user
// message back as assistant text, so the demo can exercise the Agent
// Loop without a live provider connection.
type echoModel struct{}

func (m *echoModel) Generate(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (*llm.Response, error) {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Text()
	}
	return &llm.Response{
		Model:      "echo",
		Role:       llm.Assistant,
		Content:    []llm.Content{llm.NewTextContent("echo: " + last)},
		StopReason: "stop",
		Type:       "message",
	}, nil
}

func (m *echoModel) Stream(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (llm.Stream, error) {
	return nil, fmt.Errorf("echoModel: streaming not supported")
}

func (m *echoModel) SupportsStreaming() bool { return false }
