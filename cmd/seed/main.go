package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"estore/api/internal/auth"
	"estore/api/internal/config"
	"estore/api/internal/db"
	"estore/api/internal/db/seeds"
	"estore/api/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("erro ao carregar configuração: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Fatalf("erro ao criar diretório de dados: %v", err)
	}

	sqlite, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatalf("erro ao abrir banco de dados: %v", err)
	}
	defer sqlite.Close()

	if err := db.Migrate(sqlite); err != nil {
		logger.Fatalf("erro ao executar migrações: %v", err)
	}

	logger.Infof("executando seeds...")
	if err := seeds.Run(sqlite); err != nil {
		logger.Fatalf("erro ao executar seeds: %v", err)
	}
	logger.Infof("seeds finalizados com sucesso (senha de todos: %s)", seeds.Password)

	// tokens de desenvolvimento, válidos por JWT_TTL
	for _, a := range seeds.Accounts {
		token, err := auth.IssueToken(cfg.JWTSecret, a.ID, a.Role, cfg.JWTTTL, time.Now())
		if err != nil {
			logger.Fatalf("erro ao gerar token para %s: %v", a.Email, err)
		}
		fmt.Printf("%-18s %-6s %s\n", a.Email, a.Role, token)
	}
}
