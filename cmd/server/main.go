package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/theatre/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	secret = configVar[string]{
		envKey:  "SERVER_SECRET",
		flagKey: "secret",
		usage:   "Secret used to verify auth tokens",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisPassword = configVar[string]{
		envKey:  "REDIS_PASSWORD",
		flagKey: "redis-password",
		usage:   "Redis password",
	}
	redisDB = configVar[int]{
		envKey:  "REDIS_DB",
		flagKey: "redis-db",
		usage:   "Redis logical database",
	}
	wsReadLimit = configVar[int64]{
		envKey:       "SERVER_WS_READ_LIMIT",
		flagKey:      "ws-read-limit",
		defaultValue: 4096,
		usage:        "Maximum size in bytes of an inbound websocket message",
	}
	wsPingPeriod = configVar[time.Duration]{
		envKey:       "SERVER_WS_PING_PERIOD",
		flagKey:      "ws-ping-period",
		defaultValue: 30 * time.Second,
		usage:        "Interval between websocket pings",
	}
	wsSendBuffer = configVar[int]{
		envKey:       "SERVER_WS_SEND_BUFFER",
		flagKey:      "ws-send-buffer",
		defaultValue: 64,
		usage:        "Outbound messages queued per connection before deliveries are dropped",
	}
	commandRate = configVar[float64]{
		envKey:       "SERVER_COMMAND_RATE",
		flagKey:      "command-rate",
		defaultValue: 20,
		usage:        "Inbound messages per second allowed per connection",
	}
	commandBurst = configVar[int]{
		envKey:       "SERVER_COMMAND_BURST",
		flagKey:      "command-burst",
		defaultValue: 40,
		usage:        "Burst of inbound messages allowed per connection",
	}
	storeConcurrency = configVar[int64]{
		envKey:       "SERVER_STORE_CONCURRENCY",
		flagKey:      "store-concurrency",
		defaultValue: 64,
		usage:        "Maximum number of in-flight room store calls",
	}
	relayEnabled = configVar[bool]{
		envKey:  "SERVER_RELAY_ENABLED",
		flagKey: "relay-enabled",
		usage:   "Relay room broadcasts to other server processes through redis",
	}
	relayChannel = configVar[string]{
		envKey:       "SERVER_RELAY_CHANNEL",
		flagKey:      "relay-channel",
		defaultValue: "theatre:relay",
		usage:        "Redis pub/sub channel used by the relay",
	}
	roomLockTTL = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_LOCK_TTL",
		flagKey:      "room-lock-ttl",
		defaultValue: 5 * time.Second,
		usage:        "Expiry of the shared room lock held while a playback command runs",
	}
)

func (v configVar[T]) bind() {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, secret.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.Int(redisDB.flagKey, redisDB.defaultValue, redisDB.usage)
	pflag.Int64(wsReadLimit.flagKey, wsReadLimit.defaultValue, wsReadLimit.usage)
	pflag.Duration(wsPingPeriod.flagKey, wsPingPeriod.defaultValue, wsPingPeriod.usage)
	pflag.Int(wsSendBuffer.flagKey, wsSendBuffer.defaultValue, wsSendBuffer.usage)
	pflag.Float64(commandRate.flagKey, commandRate.defaultValue, commandRate.usage)
	pflag.Int(commandBurst.flagKey, commandBurst.defaultValue, commandBurst.usage)
	pflag.Int64(storeConcurrency.flagKey, storeConcurrency.defaultValue, storeConcurrency.usage)
	pflag.Bool(relayEnabled.flagKey, relayEnabled.defaultValue, relayEnabled.usage)
	pflag.String(relayChannel.flagKey, relayChannel.defaultValue, relayChannel.usage)
	pflag.Duration(roomLockTTL.flagKey, roomLockTTL.defaultValue, roomLockTTL.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	secret.bind()
	host.bind()
	port.bind()
	logLevel.bind()
	redisHost.bind()
	redisPort.bind()
	redisPassword.bind()
	redisDB.bind()
	wsReadLimit.bind()
	wsPingPeriod.bind()
	wsSendBuffer.bind()
	commandRate.bind()
	commandBurst.bind()
	storeConcurrency.bind()
	relayEnabled.bind()
	relayChannel.bind()
	roomLockTTL.bind()

	return &app.AppConfig{
		Secret:           viper.GetString(secret.flagKey),
		Host:             viper.GetString(host.flagKey),
		Port:             viper.GetInt(port.flagKey),
		LogLevel:         viper.GetString(logLevel.flagKey),
		RedisHost:        viper.GetString(redisHost.flagKey),
		RedisPort:        viper.GetInt(redisPort.flagKey),
		RedisPassword:    viper.GetString(redisPassword.flagKey),
		RedisDB:          viper.GetInt(redisDB.flagKey),
		WSReadLimit:      viper.GetInt64(wsReadLimit.flagKey),
		WSPingPeriod:     viper.GetDuration(wsPingPeriod.flagKey),
		WSSendBuffer:     viper.GetInt(wsSendBuffer.flagKey),
		CommandRate:      viper.GetFloat64(commandRate.flagKey),
		CommandBurst:     viper.GetInt(commandBurst.flagKey),
		StoreConcurrency: viper.GetInt64(storeConcurrency.flagKey),
		RelayEnabled:     viper.GetBool(relayEnabled.flagKey),
		RelayChannel:     viper.GetString(relayChannel.flagKey),
		RoomLockTTL:      viper.GetDuration(roomLockTTL.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
