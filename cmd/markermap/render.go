package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/markermap/markermap/internal/config"
	"github.com/markermap/markermap/internal/controller"
	"github.com/markermap/markermap/internal/dataset"
	"github.com/markermap/markermap/internal/dispatcher"
	"github.com/markermap/markermap/internal/leaflet"
	"github.com/markermap/markermap/internal/logging"
	"github.com/markermap/markermap/internal/mapview"
	"github.com/markermap/markermap/internal/page"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// stderrNotifier is the CLI stand-in for a blocking browser alert.
type stderrNotifier struct {
	w io.Writer
}

func (n stderrNotifier) Alert(message string) {
	fmt.Fprintf(n.w, "markermap: %s\n", message)
}

// view ties the host page to the controller and the scene it drives.
type view struct {
	doc   *page.Document
	ctrl  *controller.Controller
	scene *leaflet.Scene
	out   string
}

func runRender(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	name := "render"
	if stdin != nil {
		name = "watch"
	}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	commonFlags(fs)
	fs.String("page", "", "host page, an http(s) URL or a local file")
	fs.String("window", "", "initial time window in hours or \"all\" (default: the page's time filter)")
	fs.StringP("out", "o", "", "output file, \"-\" or empty for stdout")
	fs.String("data", "", "dataset path relative to the page (default \""+dataset.DefaultPath+"\")")
	_ = viper.BindPFlag("dataPath", fs.Lookup("data"))

	e, code := parseFlags(fs, args, stderr)
	if e == nil {
		return code
	}
	defer e.Close()

	src, _ := fs.GetString("page")
	if src == "" {
		e.Logger.Error().Msg("No page given, use --page")
		return exitUsage
	}

	httpClient := &http.Client{Timeout: config.GetDuration("httpTimeout")}
	doc, pageURL, err := readPage(ctx, httpClient, src)
	if err != nil {
		e.Logger.Error().Err(err).Str("page", src).Msg("Failed to read host page")
		return exitError
	}

	initial := config.GetString("filter.default")
	if v, ok := doc.TimeFilterValue(); ok {
		initial = v
	}
	if fs.Changed("window") {
		initial, _ = fs.GetString("window")
	}

	viewCfg := config.GetViewConfig()
	tiles := config.GetTileConfig()
	opts := controller.Options{
		Zoom:         viewCfg.Zoom,
		Tiles:        mapview.TileLayer{URLTemplate: tiles.URLTemplate, Attribution: tiles.Attribution},
		IconTemplate: config.GetString("icons.fallbackTemplate"),
	}
	if e.Reporter != nil {
		opts.Reporter = e.Reporter
	}

	v := &view{doc: doc}
	v.out, _ = fs.GetString("out")
	factory := leaflet.NewFactory(
		leaflet.Options{Width: viewCfg.Width, Height: viewCfg.Height, MaxZoom: viewCfg.MaxZoom},
		func(s *leaflet.Scene) { v.scene = s },
	)
	loader := dataset.New(config.GetString("dataPath"), config.GetDuration("httpTimeout"), e.Logger)

	v.ctrl, err = controller.New(factory, loader, stderrNotifier{w: stderr}, opts, e.Logger)
	if err != nil {
		e.Logger.Error().Err(err).Msg("Failed to create controller")
		return exitError
	}
	if err := v.ctrl.Init(ctx, doc, pageURL, initial); err != nil {
		return exitError
	}

	if err := v.write(stdout); err != nil {
		e.Logger.Error().Err(err).Msg("Failed to write page")
		return exitError
	}
	if stdin == nil {
		return exitOK
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(e.Logger))
	if err != nil {
		e.Logger.Error().Err(err).Msg("Failed to create dispatcher")
		return exitError
	}
	v.ctrl.Register(ctx, d)
	return v.watch(ctx, d, stdin, stdout, stderr)
}

// readPage loads the host page. Local files get a file:// page URL, which
// has no network base for the dataset request.
func readPage(ctx context.Context, client *http.Client, src string) (*page.Document, string, error) {
	if u, err := url.Parse(src); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, "", fmt.Errorf("unexpected status: %s", resp.Status)
		}
		doc, err := page.Parse(resp.Body)
		return doc, src, err
	}

	abs, err := filepath.Abs(src)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	doc, err := page.Parse(f)
	fileURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return doc, fileURL.String(), err
}

// render injects the current scene into the page.
func (v *view) render() ([]byte, error) {
	toggles := v.ctrl.Toggles()
	markup, err := toggles.Render()
	if err != nil {
		return nil, err
	}
	scene, err := v.scene.Render(&leaflet.Control{ID: toggles.ID(), Markup: markup})
	if err != nil {
		return nil, err
	}

	v.doc.SelectTimeFilter(v.ctrl.Window().Selection().String())
	if err := v.doc.Inject(v.ctrl.Mount(), string(scene)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := v.doc.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return buf.Bytes(), nil
}

func (v *view) write(stdout io.Writer) error {
	data, err := v.render()
	if err != nil {
		return err
	}
	if v.out == "" || v.out == "-" {
		_, err = stdout.Write(data)
		return err
	}
	return writeFileAtomic(v.out, data)
}

// writeFileAtomic replaces path so readers never see a partial page.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

var errQuit = errors.New("quit")

// parseCommand turns a watch line into an event.
func parseCommand(line string) (dispatcher.Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return dispatcher.Event{}, fmt.Errorf("empty command")
	}
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return dispatcher.Event{}, errQuit
	case "filter":
		return dispatcher.Event{Command: dispatcher.CommandFilterChange, Args: fields[1:]}, nil
	case "toggle":
		if len(fields) < 3 {
			return dispatcher.Event{}, fmt.Errorf("usage: toggle <category> on|off")
		}
		category := strings.Join(fields[1:len(fields)-1], " ")
		return dispatcher.Event{
			Command: dispatcher.CommandLayerToggle,
			Args:    []string{category, fields[len(fields)-1]},
		}, nil
	}
	return dispatcher.Event{}, fmt.Errorf("unknown command %q", fields[0])
}

// watch applies commands from in until EOF or quit, rewriting the page after
// every successful one.
func (v *view) watch(ctx context.Context, d *dispatcher.Dispatcher, in io.Reader, stdout, stderr io.Writer) int {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return exitOK
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ev, err := parseCommand(line)
		if errors.Is(err, errQuit) {
			return exitOK
		}
		if err != nil {
			fmt.Fprintf(stderr, "markermap: %v\n", err)
			continue
		}
		if _, err := d.Dispatch(ev); err != nil {
			fmt.Fprintf(stderr, "markermap: %v\n", err)
			continue
		}
		if err := v.write(stdout); err != nil {
			fmt.Fprintf(stderr, "markermap: %v\n", err)
			return exitError
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(stderr, "markermap: %v\n", err)
		return exitError
	}
	return exitOK
}
