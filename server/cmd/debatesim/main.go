package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"debate-sim/server/internal/api"
	"debate-sim/server/internal/config"
)

func main() {
	// 本地可跑、可调试优先：参数用 flag，敏感信息（LLM API Key）用环境变量。
	// - DEEPSEEK_API_KEY / OPENAI_API_KEY：按 llm.provider 选用
	// - LLM_MODEL：可选，便于本地快速切换模型
	configPath := flag.String("config", "server/configs/config.yaml", "config file path")
	addr := flag.String("addr", "", "http listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("init server: %v", err)
	}
	defer server.Shutdown()

	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	log.Printf("debate-sim server listening on %s", listen)
	if err := http.ListenAndServe(listen, server.Routes()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
