package config

import (
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/accountkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

// parseEnv loads a dotenv file into the process environment and then
// overlays environment variables onto config. The file named by -env-file
// must exist; the implicit ./.env is optional. Unset variables keep the
// current value.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlag(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, relying on process environment")
	}

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
