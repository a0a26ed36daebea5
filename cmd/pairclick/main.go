package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/pairclick/internal/app"
	"github.com/ayusman/pairclick/internal/capture"
	"github.com/ayusman/pairclick/internal/config"
	"github.com/ayusman/pairclick/internal/detector"
	"github.com/ayusman/pairclick/internal/engine"
	"github.com/ayusman/pairclick/internal/server"
	"github.com/ayusman/pairclick/internal/store"
	"github.com/ayusman/pairclick/internal/tray"
)

const usage = `Pairclick - memory card matcher

Usage:
  pairclick solve [flags] -image board.png
  pairclick serve [flags]
  pairclick tray [flags]
  pairclick import-templates [flags] <dir|file>...

Run "pairclick <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "solve":
		err = runSolve(args)
	case "serve":
		err = runServe(args, false)
	case "tray":
		err = runServe(args, true)
	case "import-templates":
		err = runImport(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// common holds the flags shared by every command.
type common struct {
	configPath string
	dataDir    string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML config file (defaults apply when empty)")
	fs.StringVar(&c.dataDir, "data", defaultDataDir(), "directory for the database and web assets")
}

func (c *common) load() (config.Config, error) {
	return config.Load(c.configPath)
}

// openStore opens the database named by cfg.Store.Path. A relative path is
// taken from the data directory.
func (c *common) openStore(cfg config.Config) (*store.Store, error) {
	path := storePath(c.dataDir, cfg.Store.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return store.New(path)
}

func storePath(dataDir, path string) string {
	if path == "" {
		path = "pairclick.db"
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".pairclick"
	}
	return filepath.Join(homeDir, ".pairclick")
}

func runSolve(args []string) error {
	fs := flag.NewFlagSet("solve", flag.ExitOnError)
	var c common
	c.register(fs)
	imagePath := fs.String("image", "", "screenshot to solve (required)")
	mode := fs.String("mode", "", "grid or template (overrides config)")
	rows := fs.Int("rows", 0, "grid rows (overrides config)")
	cols := fs.Int("cols", 0, "grid columns (overrides config)")
	threshold := fs.Float64("threshold", 0, "pairing threshold in [0,1] (overrides config)")
	templateDir := fs.String("templates", "", "template directory for template mode")
	dryRun := fs.Bool("dry-run", false, "report clicks without performing them")
	annotate := fs.String("annotate", "", "write the screenshot with pairs drawn to this file")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	noStore := fs.Bool("no-store", false, "do not read profiles or record the solve")
	fs.Parse(args)

	if *imagePath == "" {
		fs.Usage()
		return fmt.Errorf("-image is required")
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	if *mode != "" {
		cfg.Engine.Mode = *mode
	}
	if *rows > 0 {
		cfg.Grid.Rows = *rows
	}
	if *cols > 0 {
		cfg.Grid.Cols = *cols
	}
	if *threshold > 0 {
		cfg.Engine.Threshold = *threshold
	}
	if *templateDir != "" {
		cfg.Template.Dir = *templateDir
	}
	if *dryRun {
		cfg.Clicker.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var st *store.Store
	if !*noStore {
		if st, err = c.openStore(cfg); err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer st.Close()
	}

	a := app.New(cfg, st, nil)
	defer a.Close()
	if err := a.Init(); err != nil {
		return err
	}
	if *dryRun {
		a.OverrideDryRun(true)
	}

	scene, err := capture.Load(*imagePath)
	if err != nil {
		return err
	}
	defer scene.Close()

	out, err := a.SolveScene(context.Background(), scene)
	if err != nil {
		return err
	}

	if *annotate != "" {
		img := engine.Annotate(*scene, out.Result)
		ok := gocv.IMWrite(*annotate, img)
		img.Close()
		if !ok {
			return fmt.Errorf("failed to write %s", *annotate)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printOutcome(out)
	return nil
}

func printOutcome(out *app.Outcome) {
	res := out.Result
	fmt.Printf("Mode: %s\n", res.Mode)
	fmt.Printf("Pairs: %d of %d\n", res.Summary.FoundPairs, res.Summary.ExpectedPairs)
	for i, p := range res.Pairs {
		c := res.Clicks[i]
		fmt.Printf("  %2d-%-2d %s -> %s (score %.3f)\n", p.A, p.B, c.A, c.B, p.Score)
	}
	if len(res.Summary.UnmatchedIDs) > 0 {
		fmt.Printf("Unmatched: %v\n", res.Summary.UnmatchedIDs)
	}
	for _, w := range res.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	switch {
	case out.ClickError != "":
		fmt.Printf("Clicking failed: %s\n", out.ClickError)
	case out.DryRun:
		fmt.Println("Dry run: no clicks performed")
	default:
		fmt.Printf("Clicked %d pairs\n", out.Clicked)
	}
}

// runServe starts the HTTP API, optionally under a system tray icon.
func runServe(args []string, withTray bool) error {
	name := "serve"
	if withTray {
		name = "tray"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var c common
	c.register(fs)
	addr := fs.String("addr", "", "listen address (overrides config)")
	source := fs.String("source", "", "screenshot file or directory (overrides config)")
	watch := fs.Bool("watch", false, "solve automatically whenever the board changes")
	fs.Parse(args)

	cfg, err := c.load()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *source != "" {
		cfg.Capture.Path = *source
	}

	st, err := c.openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	src, err := openSource(cfg.Capture.Path)
	if err != nil {
		return err
	}

	a := app.New(cfg, st, src)
	defer a.Close()
	if err := a.Init(); err != nil {
		return err
	}

	hub := server.NewHub()
	a.OnSolve(hub.SolveEvent)

	webDir := findWebDir(c.dataDir)
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Solver:    a,
		Source:    src,
		Events:    hub,
	})

	if *watch {
		a.SetEnabled(true)
		if err := a.Start(); err != nil {
			return err
		}
	}

	if !withTray {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		return srv.ListenAndServe(cfg.Server.Addr)
	}

	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
			log.Printf("Server failed: %v", err)
		}
	}()

	runTray(a, cfg.Server.Addr, *watch)
	return nil
}

func runTray(a *app.App, addr string, watching bool) {
	t := tray.New(a.DryRun())
	t.SetWatching(watching)

	a.OnSolve(func(o *app.Outcome) { t.SetLast(tray.Describe(o)) })
	t.OnWatch(func(enabled bool) {
		a.SetEnabled(enabled)
		if !enabled {
			a.Stop()
			return
		}
		if err := a.Start(); err != nil {
			log.Printf("Cannot watch: %v", err)
		}
	})
	t.OnSolve(func() {
		if _, err := a.SolveNow(context.Background()); err != nil {
			log.Printf("Solve failed: %v", err)
		}
	})
	t.OnDryRun(a.SetDryRun)
	t.OnSettings(func() { openBrowser("http://" + browseAddr(addr)) })
	t.OnQuit(func() { a.Stop() })

	t.Run()
}

// browseAddr turns a listen address into one a browser can reach.
func browseAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

// openSource picks a directory or single-file source for path. An empty
// path means no source: only uploaded screenshots can be solved.
func openSource(path string) (capture.Source, error) {
	if path == "" {
		return nil, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("capture source: %w", err)
	}
	if info.IsDir() {
		return capture.NewDirSource(path), nil
	}
	return capture.NewFileSource(path), nil
}

// runImport stores card images in the template library. Directories are
// expanded to their PNG/JPEG files; labels come from file names.
func runImport(args []string) error {
	fs := flag.NewFlagSet("import-templates", flag.ExitOnError)
	var c common
	c.register(fs)
	replace := fs.Bool("replace", false, "replace templates whose label already exists")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no template files given")
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	st, err := c.openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	files, err := templateFiles(fs.Args())
	if err != nil {
		return err
	}

	imported := 0
	for _, path := range files {
		label := templateLabel(path)
		ok, err := importTemplate(st, path, label, *replace)
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			continue
		}
		if ok {
			imported++
		}
	}
	fmt.Printf("Imported %d of %d templates\n", imported, len(files))
	return nil
}

func importTemplate(st *store.Store, path, label string, replace bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	t, err := detector.DecodeTemplate(0, label, data)
	if err != nil {
		return false, err
	}
	width, height := t.Width, t.Height
	t.Close()

	if existing, err := st.Templates().GetByLabel(label); err == nil {
		if !replace {
			log.Printf("Template %q already exists", label)
			return false, nil
		}
		if err := st.Templates().Delete(existing.ID); err != nil {
			return false, err
		}
	}

	return true, st.Templates().Create(&store.Template{
		ID:     uuid.New().String(),
		Label:  label,
		Width:  width,
		Height: height,
		Image:  data,
	})
}

// templateFiles expands directories into their image files, sorted by name.
func templateFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".png", ".jpg", ".jpeg":
				if !e.IsDir() {
					files = append(files, filepath.Join(arg, e.Name()))
				}
			}
		}
	}
	return files, nil
}

func templateLabel(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
