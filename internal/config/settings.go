package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/viper"
)

// defaultInstructions mirrors the persona-robot system prompt handed to the
// cloud speech service on session.update.
const defaultInstructions = `You are a small household robot assistant. You are curious, ` +
	`a little mischievous, and you speak in short, warm sentences. Keep responses brief ` +
	`enough to say out loud in a few seconds.`

type IngressConfig struct {
	Host        string `mapstructure:"host"`
	AudioPort   int    `mapstructure:"audio_port"`
	SensorPort  int    `mapstructure:"sensor_port"`
	RecvBufSize int    `mapstructure:"recv_buf_size"`
	RecvThreads int    `mapstructure:"recv_threads"`
}

// ResolvedRecvThreads returns RecvThreads, substituting the number of
// logical CPUs when it is configured as 0.
func (i IngressConfig) ResolvedRecvThreads() int {
	if i.RecvThreads <= 0 {
		return runtime.NumCPU()
	}
	return i.RecvThreads
}

type DispatchConfig struct {
	ChannelCapacity int `mapstructure:"channel_capacity"`
	ProcThreads     int `mapstructure:"proc_threads"`
}

func (d DispatchConfig) ResolvedProcThreads() int {
	if d.ProcThreads <= 0 {
		return runtime.NumCPU()
	}
	return d.ProcThreads
}

type OpenAIConfig struct {
	Enabled      bool   `mapstructure:"openai_realtime"`
	APIKey       string `mapstructure:"openai_api_key"`
	Model        string `mapstructure:"openai_model"`
	Voice        string `mapstructure:"openai_voice"`
	Instructions string `mapstructure:"openai_instructions"`
}

type APIConfig struct {
	Port int `mapstructure:"api_port"`
}

type StatsConfig struct {
	IntervalSecs int `mapstructure:"stats_interval_secs"`
}

type Settings struct {
	Env            string         `mapstructure:"env"`
	Debug          bool           `mapstructure:"debug" default:"false"`
	Ingress        IngressConfig  `mapstructure:"ingress"`
	Dispatch       DispatchConfig `mapstructure:"dispatch"`
	OpenAI         OpenAIConfig   `mapstructure:"openai"`
	API            APIConfig      `mapstructure:"api"`
	Stats          StatsConfig    `mapstructure:"stats"`
	AudioSaveDir   string         `mapstructure:"audio_save_dir"`
}

func defaults() Settings {
	return Settings{
		Env:   "dev",
		Debug: false,
		Ingress: IngressConfig{
			Host:        "0.0.0.0",
			AudioPort:   9001,
			SensorPort:  9002,
			RecvBufSize: 4 * 1024 * 1024,
			RecvThreads: 4,
		},
		Dispatch: DispatchConfig{
			ChannelCapacity: 65536,
			ProcThreads:     2,
		},
		OpenAI: OpenAIConfig{
			Enabled:      false,
			Model:        "gpt-4o-realtime-preview-2024-12-17",
			Voice:        "ash",
			Instructions: defaultInstructions,
		},
		API: APIConfig{
			Port: 8080,
		},
		Stats: StatsConfig{
			IntervalSecs: 5,
		},
		AudioSaveDir: "./esp_audio",
	}
}

func Load() (*Settings, error) {
	settings := defaults()

	if cfgPath := os.Getenv("VADBRIDGE_CONFIG"); cfgPath != "" {
		viper.SetConfigFile(cfgPath)
	} else {
		viper.SetConfigName("config_" + genEnv())
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/vadbridge")
	}

	if err := viper.ReadInConfig(); err != nil {
		if os.Getenv("VADBRIDGE_CONFIG") != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file on disk is tolerated; defaults plus env stand in.
	}

	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" && settings.OpenAI.APIKey == "" {
		settings.OpenAI.APIKey = key
	}

	return &settings, nil
}

func genEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
