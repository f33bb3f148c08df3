package config

import "time"

type Config struct {
	Web    Web
	DB     DB
	Cors   Cors
	Auth   Auth
	Stripe Stripe
	Email  Email
}

type Web struct {
	Address         string        `conf:"default:127.0.0.1:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost:5432"`
	Name       string `conf:"default:gigmarket"`
	DisableTLS bool   `conf:"default:true"`
}

type Cors struct {
	Origin string `conf:"default:http://localhost:5173"`
}

type Auth struct {
	LoginRateBurst  int           `conf:"default:5"`
	LoginRateExpiry int           `conf:"default:60"`
	LoginRateEvery  time.Duration `conf:"default:1s"`
}

type Stripe struct {
	APISecret     string        `conf:"mask"`
	WebhookSecret string        `conf:"mask"`
	SuccessURL    string        `conf:"default:http://localhost:5173/payment-success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL     string        `conf:"default:http://localhost:5173/payment-cancel"`
	Timeout       time.Duration `conf:"default:10s"`
}

type Email struct {
	Host     string `conf:"default:localhost"`
	Port     string `conf:"default:25"`
	Address  string
	Password string `conf:"mask"`
}
