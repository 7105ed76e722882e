package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	authbiz "github.com/clawchat/clawchat-backend/internal/auth/biz"
	authdata "github.com/clawchat/clawchat-backend/internal/auth/data"
	"github.com/clawchat/clawchat-backend/internal/conf"

	"github.com/redis/go-redis/v9"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// invite mints a single-use invite token and prints the join URL, with
// a terminal QR code for scanning from a phone.

var (
	configFile = flag.String("config", "config.yaml", "config file path")
	baseURL    = flag.String("url", "", "public base URL of the chat server (e.g. https://chat.example.com)")
	noQR       = flag.Bool("no-qr", false, "skip the terminal QR code")
)

func main() {
	flag.Parse()

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to connect to redis:", err)
		os.Exit(1)
	}

	auth := authbiz.NewAuthUseCase(
		authdata.NewInviteRepo(client),
		authdata.NewSessionRepo(client),
		zap.NewNop(),
	)

	token, err := auth.CreateInvite(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create invite:", err)
		os.Exit(1)
	}

	base := *baseURL
	if base == "" {
		base = fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
	}
	joinURL := fmt.Sprintf("%s/invite?token=%s", base, token)

	fmt.Println("Invite created. Valid for", authbiz.InviteTTL, "and usable once.")
	fmt.Println()
	fmt.Println("  ", joinURL)
	fmt.Println()

	if !*noQR {
		qr, err := qrcode.New(joinURL, qrcode.Medium)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to render QR code:", err)
			os.Exit(1)
		}
		fmt.Println(qr.ToSmallString(false))
	}
}
