package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"keel/internal/app"
	keelcfg "keel/internal/config"
	"keel/internal/logger"
)

const usage = `usage: keel <command> [-config path]

commands:
  start   load config, start the advisor fleet, serve until stopped
  stop    ask a running instance to stop its advisors and exit
  specs   print the materialised advisor specs
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	command := os.Args[1]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	cfgPath := flags.String("config", defaultConfigPath(), "path to the YAML config file")
	_ = flags.Parse(os.Args[2:])

	cfg, err := keelcfg.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("initialising log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)

	switch command {
	case "start":
		runStart(cfg, *cfgPath)
	case "stop":
		runStop(cfg)
	case "specs":
		runSpecs(cfg)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runStart(cfg *keelcfg.Config, cfgPath string) {
	application, err := app.NewApp(cfg, cfgPath)
	if err != nil {
		log.Fatalf("initialising application failed: %v", err)
	}
	res, err := application.StartAdvisors()
	if err != nil {
		logger.Errorf("starting advisors failed: %v", err)
	}
	fmt.Printf("started %d advisors, %d already running\n", res.New, res.AlreadyRunning)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := application.Run(ctx); err != nil {
		logger.Errorf("run failed: %v", err)
	}
}

func runStop(cfg *keelcfg.Config) {
	addr := cfg.App.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post("http://"+addr+"/api/advisors/stop", "application/json", nil)
	if err != nil {
		logger.Errorf("stop request failed: %v", err)
		fmt.Println("stopped 0 advisors")
		return
	}
	defer resp.Body.Close()
	var body struct {
		Stopped int `json:"stopped"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logger.Errorf("stop response decode failed: %v", err)
	}
	fmt.Printf("stopped %d advisors\n", body.Stopped)
}

func runSpecs(cfg *keelcfg.Config) {
	application, err := app.NewApp(cfg, "")
	if err != nil {
		log.Fatalf("initialising application failed: %v", err)
	}
	type specView struct {
		Address    string              `yaml:"address"`
		GroupID    string              `yaml:"group_id"`
		AdvisorID  string              `yaml:"advisor_id"`
		Products   []string            `yaml:"products"`
		OrderBooks map[string][]string `yaml:"order_books"`
		Config     map[string]any      `yaml:"config,omitempty"`
	}
	views := make([]specView, 0, len(application.Specs()))
	for _, s := range application.Specs() {
		products := make([]string, 0, len(s.Products))
		for _, p := range s.Products {
			products = append(products, p.String())
		}
		views = append(views, specView{
			Address:    s.Address(),
			GroupID:    s.GroupID,
			AdvisorID:  s.AdvisorID,
			Products:   products,
			OrderBooks: s.OrderBooks,
			Config:     s.Config,
		})
	}
	out, err := yaml.Marshal(views)
	if err != nil {
		log.Fatalf("rendering specs failed: %v", err)
	}
	fmt.Print(string(out))
}

func defaultConfigPath() string {
	if p := os.Getenv("KEEL_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
