// Command seed creates a room in redis and prints an auth token for each of its users.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/theatre/internal/repository/room"
	roomRedis "github.com/sharetube/theatre/internal/repository/room/redis"
	"github.com/sharetube/theatre/internal/service/auth"
	"github.com/sharetube/theatre/pkg/redisclient"
)

func main() {
	pflag.String("secret", "", "Secret used to sign auth tokens")
	pflag.String("redis-host", "localhost", "Redis host")
	pflag.Int("redis-port", 6379, "Redis port")
	pflag.String("redis-password", "", "Redis password")
	pflag.Int("redis-db", 0, "Redis logical database")
	pflag.String("room-id", "", "Room id, generated when empty")
	pflag.String("name", "watch party", "Room name")
	pflag.String("host-id", "host", "User id of the room host")
	pflag.StringSlice("members", []string{"guest"}, "User ids of the other members")
	pflag.String("video-url", "", "Video url of the room")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)
	viper.BindEnv("secret", "SERVER_SECRET")
	viper.BindEnv("redis-host", "REDIS_HOST")
	viper.BindEnv("redis-port", "REDIS_PORT")
	viper.BindEnv("redis-password", "REDIS_PASSWORD")
	viper.BindEnv("redis-db", "REDIS_DB")

	secret := viper.GetString("secret")
	if secret == "" {
		log.Fatal("secret is required")
	}

	roomID := viper.GetString("room-id")
	if roomID == "" {
		roomID = uuid.NewString()
	}

	var videoURL *string
	if url := viper.GetString("video-url"); url != "" {
		videoURL = &url
	}

	ctx := context.Background()
	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Host:     viper.GetString("redis-host"),
		Port:     viper.GetInt("redis-port"),
		Password: viper.GetString("redis-password"),
		DB:       viper.GetInt("redis-db"),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer rc.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	tokens, err := seedRoom(ctx, roomRedis.NewRepo(rc, logger), auth.NewService(secret), &room.CreateRoomParams{
		RoomID:   roomID,
		Name:     viper.GetString("name"),
		Host:     viper.GetString("host-id"),
		Members:  viper.GetStringSlice("members"),
		VideoURL: videoURL,
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("room %s\n", roomID)
	for _, t := range tokens {
		fmt.Printf("%s\t/api/v1/ws/room/%s?auth-token=%s\n", t.UserID, roomID, t.Token)
	}
}
