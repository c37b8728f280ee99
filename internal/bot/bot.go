// Package bot dispatches chat commands and button presses to the access
// gateway, the sensor and the day logs, and replies through a Transport.
package bot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sweeney/climate-bot/internal/access"
	"github.com/sweeney/climate-bot/internal/graph"
	"github.com/sweeney/climate-bot/internal/timeseries"
)

const (
	msgDenied          = "🚫 Your access has been permanently denied."
	msgNotAuthorized   = "⚠️ You are not authenticated. Please wait while your request is reviewed."
	msgAlreadyPending  = "⚠️ Your access request is already pending."
	msgRequestApproved = "✅ Your access request has been approved."
	msgRequestDenied   = "🚫 Your access request has been denied."
	msgGranted         = "✅ Access granted."
	msgRefused         = "🚫 Access denied."
	msgExpired         = "Request expired."
	msgNoData          = "⚠️ No measurements available yet."

	msgHelp = "*Available Commands:*\n" +
		"/sensor - Get sensor infos\n" +
		"/graph - Get historical sensor infos"

	// Telegram rejects longer messages.
	maxMessageLen = 4096
)

// Reader is the interactive sensor read.
type Reader interface {
	Temperature() (float64, error)
	Humidity() (float64, error)
}

// Renderer draws a day log as a PNG.
type Renderer interface {
	Render(day time.Time, readings []timeseries.Reading) ([]byte, error)
}

// Config holds the values disclosed or scanned by admin-only commands.
type Config struct {
	PiholeURL      string
	PiholePassword string
	PiholeLog      string
	HistoryFilter  string
}

// Dependencies wires a Dispatcher.
type Dependencies struct {
	Gateway   *access.Gateway
	Reader    Reader
	Store     *timeseries.Store
	Renderer  Renderer
	Transport Transport
	Config    Config

	// Now defaults to time.Now.
	Now func() time.Time
}

// Dispatcher maps inbound updates to handlers. Each update runs in its own
// goroutine; authorization is synchronous within the handler.
type Dispatcher struct {
	gateway   *access.Gateway
	reader    Reader
	store     *timeseries.Store
	renderer  Renderer
	transport Transport
	cfg       Config
	now       func() time.Time

	wg sync.WaitGroup
}

// New creates a Dispatcher.
func New(deps Dependencies) *Dispatcher {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		gateway:   deps.Gateway,
		reader:    deps.Reader,
		store:     deps.Store,
		renderer:  deps.Renderer,
		transport: deps.Transport,
		cfg:       deps.Config,
		now:       now,
	}
}

// Run handles updates until ctx is done or updates is closed, then waits for
// in-flight handlers.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan Update) error {
	defer d.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.Handle(ctx, u)
			}()
		}
	}
}

// Handle processes one update synchronously.
func (d *Dispatcher) Handle(ctx context.Context, u Update) {
	switch {
	case u.Command != nil:
		d.handleCommand(ctx, u.Command)
	case u.Callback != nil:
		d.handleCallback(ctx, u.Callback)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, c *Command) {
	switch c.Name {
	case "start", "help":
		if d.authorize(ctx, c) {
			d.reply(ctx, c.ChatID, msgHelp, Markdown)
		}
	case "sensor":
		if d.authorize(ctx, c) {
			d.sensor(ctx, c)
		}
	case "graph":
		if d.authorize(ctx, c) {
			d.graph(ctx, c)
		}
	case "pihole":
		if d.gateway.IsAdmin(c.From.ID) {
			d.reply(ctx, c.ChatID, fmt.Sprintf("URL: %s\nPassword: %s", d.cfg.PiholeURL, d.cfg.PiholePassword), Plain)
		}
	case "history":
		if d.gateway.IsAdmin(c.From.ID) {
			d.history(ctx, c)
		}
	}
}

// authorize runs the gateway check and answers the requester when the
// command may not proceed.
func (d *Dispatcher) authorize(ctx context.Context, c *Command) bool {
	switch d.gateway.Authorize(ctx, c.From) {
	case access.StatusAllowed:
		return true
	case access.StatusDenied:
		d.reply(ctx, c.ChatID, msgDenied, Plain)
	case access.StatusAlreadyPending:
		d.reply(ctx, c.ChatID, msgAlreadyPending, Plain)
	default:
		d.reply(ctx, c.ChatID, msgNotAuthorized, Plain)
	}
	return false
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *Callback) {
	if err := d.transport.AnswerCallback(ctx, cb.ID); err != nil {
		log.Printf("bot: answer callback: %v", err)
	}

	res, err := d.gateway.HandleCallback(ctx, cb.From, cb.Data)
	if err != nil {
		log.Printf("bot: callback %q: %v", cb.Data, err)
		return
	}

	var text string
	switch res {
	case access.ResultApproved:
		text = msgGranted
	case access.ResultDenied:
		text = msgRefused
	case access.ResultExpired:
		text = msgExpired
	default:
		return
	}
	if err := d.transport.EditText(ctx, cb.ChatID, cb.MessageID, text); err != nil {
		log.Printf("bot: edit prompt: %v", err)
	}
}

// sensor reads live values, falling back to today's latest logged reading
// when the sensor does not answer.
func (d *Dispatcher) sensor(ctx context.Context, c *Command) {
	temp, hum, err := d.readLive()
	if err == nil {
		d.reply(ctx, c.ChatID, FormatReading(&temp, &hum), HTML)
		return
	}
	log.Printf("bot: live sensor read: %v", err)

	r, ok, err := d.store.Latest(d.now())
	if err != nil {
		log.Printf("bot: read day log: %v", err)
	}
	if !ok {
		d.reply(ctx, c.ChatID, msgNoData, Plain)
		return
	}
	d.reply(ctx, c.ChatID, FormatReading(r.Temperature, r.Humidity)+"\n<i>Last logged at "+r.Timestamp+"</i>", HTML)
}

func (d *Dispatcher) readLive() (float64, float64, error) {
	if d.reader == nil {
		return 0, 0, errors.New("no sensor configured")
	}
	temp, err := d.reader.Temperature()
	if err != nil {
		return 0, 0, err
	}
	hum, err := d.reader.Humidity()
	if err != nil {
		return 0, 0, err
	}
	return temp, hum, nil
}

// FormatReading renders temperature and humidity as HTML. Missing values show
// as n/a.
func FormatReading(temp, hum *float64) string {
	return "<b>Sensor Info</b>\n" +
		"Temperature: " + value(temp, "°C") + "\n" +
		"Humidity: " + value(hum, "%")
}

func value(v *float64, unit string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%s", *v, unit)
}

func (d *Dispatcher) graph(ctx context.Context, c *Command) {
	day := d.now()
	if arg := strings.TrimSpace(c.Args); arg != "" {
		parsed, err := time.ParseInLocation(timeseries.DayLayout, arg, day.Location())
		if err != nil {
			d.reply(ctx, c.ChatID, d.graphUsage(), Plain)
			return
		}
		day = parsed
	}

	readings, err := d.store.ReadAll(day)
	if err != nil {
		log.Printf("bot: read day log: %v", err)
	}
	if len(readings) == 0 {
		d.reply(ctx, c.ChatID, msgNoData, Plain)
		return
	}

	png, err := d.renderer.Render(day, readings)
	if errors.Is(err, graph.ErrNoData) {
		d.reply(ctx, c.ChatID, msgNoData, Plain)
		return
	}
	if err != nil {
		log.Printf("bot: render graph: %v", err)
		d.reply(ctx, c.ChatID, "⚠️ Could not render the graph.", Plain)
		return
	}
	caption := "Sensor data " + day.Format(timeseries.DayLayout)
	if err := d.transport.SendPhoto(ctx, c.ChatID, png, caption); err != nil {
		log.Printf("bot: send graph to %d: %v", c.ChatID, err)
	}
}

func (d *Dispatcher) graphUsage() string {
	usage := "Usage: /graph [YYYY-MM-DD]"
	days, err := d.store.ListDays()
	if err != nil || len(days) == 0 {
		return usage
	}
	if len(days) > 7 {
		days = days[:7]
	}
	return usage + "\nAvailable: " + strings.Join(days, ", ")
}

func (d *Dispatcher) history(ctx context.Context, c *Command) {
	lines, err := ScanLog(d.cfg.PiholeLog, d.cfg.HistoryFilter)
	if err != nil {
		log.Printf("bot: scan %s: %v", d.cfg.PiholeLog, err)
		d.reply(ctx, c.ChatID, "⚠️ Could not read the log.", Plain)
		return
	}
	d.reply(ctx, c.ChatID, truncate(fmt.Sprintf("Found %d entries:\n%s", len(lines), strings.Join(lines, "\n"))), Plain)
}

// ScanLog returns the lines of path containing filter, case-insensitively.
// An empty filter matches every line.
func ScanLog(path, filter string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	filter = strings.ToLower(filter)
	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(strings.ToLower(line), filter) {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageLen {
		return s
	}
	return string(r[:maxMessageLen-1]) + "…"
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string, format Format) {
	if err := d.transport.SendText(ctx, chatID, text, format); err != nil {
		log.Printf("bot: send to %d: %v", chatID, err)
	}
}
