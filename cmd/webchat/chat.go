package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"altotrafico-web/internal/webchat"
	"altotrafico-web/models"
	"altotrafico-web/utils"

	"github.com/spf13/cobra"
)

const quitCommand = "/salir"

type chatOptions struct {
	site         string
	apiURL       string
	apiKey       string
	botName      string
	name         string
	email        string
	pollInterval time.Duration
}

var (
	errChatDisabled = errors.New("el chat no está habilitado o le falta configuración")
	errQuit         = errors.New("conversación abandonada")
)

func runChat(cmd *cobra.Command, opts chatOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := resolveConfig(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	p := newPrinter(out)

	ctrlOpts := []webchat.Option{webchat.WithRender(p.Render)}
	if opts.pollInterval > 0 {
		ctrlOpts = append(ctrlOpts, webchat.WithPollInterval(opts.pollInterval))
	}
	ctrl := webchat.NewController(cfg, webchat.NewHTTPRemote(cfg.APIURL, cfg.APIKey), ctrlOpts...)
	if ctrl.Inert() {
		return errChatDisabled
	}
	defer ctrl.Discard()

	lines := readLines(cmd.InOrStdin())
	ctrl.Open()

	contact := webchat.ContactInfo{Name: opts.name, Email: opts.email}
	if err := startSession(ctx, ctrl, contact, lines, out); err != nil {
		if errors.Is(err, errQuit) {
			return nil
		}
		return err
	}

	fmt.Fprintf(out, "Escribe tu mensaje (%s para terminar)\n", quitCommand)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == quitCommand {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !ctrl.SendMessage(line) {
				fmt.Fprintln(out, "(no enviado: espera la respuesta anterior)")
			}
		}
	}
}

// startSession fills the contact form, prompting for whatever the flags left
// empty, and waits until the session is created. A failed create goes back to
// the form; the visitor retries with Enter or leaves with /salir.
func startSession(ctx context.Context, ctrl *webchat.Controller, contact webchat.ContactInfo, lines <-chan string, out io.Writer) error {
	for {
		var ok bool
		if contact.Name == "" {
			if contact.Name, ok = prompt(ctx, out, "Nombre: ", lines); !ok {
				return context.Canceled
			}
		}
		if contact.Email == "" {
			if contact.Email, ok = prompt(ctx, out, "Email: ", lines); !ok {
				return context.Canceled
			}
		}

		err := ctrl.SubmitContactInfo(contact)
		var fieldErrs webchat.FieldErrors
		if errors.As(err, &fieldErrs) {
			for field, msg := range fieldErrs {
				fmt.Fprintf(out, "%s: %s\n", field, msg)
				switch field {
				case "name":
					contact.Name = ""
				case "email":
					contact.Email = ""
				}
			}
			continue
		}
		if err != nil {
			return err
		}

		status, err := waitSettled(ctx, ctrl)
		if err != nil {
			return err
		}
		switch status {
		case webchat.StatusActive:
			return nil
		case webchat.StatusAwaitingContactInfo:
			line, ok := prompt(ctx, out, "Pulsa Enter para reintentar o escribe "+quitCommand+": ", lines)
			if !ok || line == quitCommand {
				return errQuit
			}
		default:
			return fmt.Errorf("no se pudo iniciar la conversación (%s)", status)
		}
	}
}

func waitSettled(ctx context.Context, ctrl *webchat.Controller) (webchat.Status, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s := ctrl.Snapshot().Status; s != webchat.StatusInitializing {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func prompt(ctx context.Context, out io.Writer, label string, lines <-chan string) (string, bool) {
	fmt.Fprint(out, label)
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-lines:
		return strings.TrimSpace(line), ok
	}
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}

func resolveConfig(ctx context.Context, opts chatOptions) (models.ChatConfig, error) {
	if opts.apiURL != "" && opts.apiKey != "" {
		return models.ChatConfig{
			Enabled: true,
			APIURL:  opts.apiURL,
			APIKey:  opts.apiKey,
			BotName: opts.botName,
		}, nil
	}

	ctx, cancel := utils.WithTimeout(ctx)
	defer cancel()
	cfg, err := fetchChatConfig(ctx, http.DefaultClient, opts.site)
	if err != nil {
		return models.ChatConfig{}, err
	}
	if opts.botName != "" {
		cfg.BotName = opts.botName
	}
	return cfg, nil
}

func fetchChatConfig(ctx context.Context, client *http.Client, site string) (models.ChatConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(site, "/")+"/api/chat/config", nil)
	if err != nil {
		return models.ChatConfig{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", utils.AcceptEncoding)

	resp, err := client.Do(req)
	if err != nil {
		return models.ChatConfig{}, fmt.Errorf("fetch chat config: %w", err)
	}
	defer resp.Body.Close()

	raw, err := utils.ReadBody(resp, 64<<10)
	if err != nil {
		return models.ChatConfig{}, fmt.Errorf("fetch chat config: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.ChatConfig{}, fmt.Errorf("fetch chat config: unexpected status %d", resp.StatusCode)
	}

	var cfg models.ChatConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.ChatConfig{}, fmt.Errorf("decode chat config: %w", err)
	}
	return cfg, nil
}

// printer writes assistant messages and status changes as views arrive.
// Visitor messages are not echoed; the terminal already shows them.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	seen   map[string]struct{}
	status webchat.Status
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, seen: make(map[string]struct{})}
}

func (p *printer) Render(v webchat.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range v.Messages {
		if _, ok := p.seen[m.ID]; ok {
			continue
		}
		p.seen[m.ID] = struct{}{}
		if m.Role == webchat.RoleAssistant {
			fmt.Fprintf(p.out, "%s: %s\n", v.BotName, m.Content)
		}
	}

	if v.Status != p.status {
		p.status = v.Status
		switch v.Status {
		case webchat.StatusPollingDegraded:
			fmt.Fprintln(p.out, "(se perdió la conexión, ya no llegarán respuestas)")
		case webchat.StatusClosed:
			fmt.Fprintln(p.out, "(conversación cerrada)")
		}
	}
}
