package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	DBDSN      string
	LogFile    string
	TaxRate    float64 // applied to the order subtotal (0.20 == 20% VAT)
	CORSOrigin string
	RedisAddr  string // optional: cross-instance realtime fan-out
	AMQPURL    string // optional: order confirmation events
	AMQPExch   string
}

func Load() Config {
	// .env is a convenience for local runs; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "shopfront.db"
	} // sqlite file in project root
	logFile := os.Getenv("LOG_FILE")
	origin := os.Getenv("CORS_ORIGIN")
	if origin == "" {
		origin = "http://localhost:3000"
	}
	tax := 0.20
	if v := os.Getenv("TAX_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f >= 1 {
			log.Printf("[config] ignoring bad TAX_RATE=%q", v)
		} else {
			tax = f
		}
	}
	exch := os.Getenv("AMQP_EXCHANGE")
	if exch == "" {
		exch = "shopfront.events"
	}

	cfg := Config{
		Port:       port,
		DBDSN:      dsn,
		LogFile:    logFile,
		TaxRate:    tax,
		CORSOrigin: origin,
		RedisAddr:  os.Getenv("REDIS_ADDR"),
		AMQPURL:    os.Getenv("AMQP_URL"),
		AMQPExch:   exch,
	}
	log.Printf("[config] PORT=%s DB_DSN=%s TAX_RATE=%.2f CORS_ORIGIN=%s", cfg.Port, cfg.DBDSN, cfg.TaxRate, cfg.CORSOrigin)
	return cfg
}
