package shared

import "time"

type ServerConfig struct {
	Luna       LunaConfig       `mapstructure:"luna" validate:"required"`
	Smtp       SmtpConfig       `mapstructure:"smtp"`
	Twilio     TwilioConfig     `mapstructure:"twilio"`
	Google     GoogleConfig     `mapstructure:"google"`
	Geoapify   GeoapifyConfig   `mapstructure:"geoapify"`
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
}

type LunaConfig struct {
	StaticDir string         `mapstructure:"staticDir" validate:"required"`
	Cron      CronConfig     `mapstructure:"cron" validate:"required"`
	Listener  ListenerConfig `mapstructure:"listener" validate:"required"`
	Watcher   WatcherConfig  `mapstructure:"watcher" validate:"required"`
}

type CronConfig struct {
	TimeZone      string `mapstructure:"timeZone" validate:"required,time_zone"`
	StatsSchedule string `mapstructure:"statsSchedule" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

type WatcherConfig struct {
	Tick            time.Duration `mapstructure:"tick" validate:"required,gt=0"`
	DeliveryTimeout time.Duration `mapstructure:"deliveryTimeout" validate:"required,gt=0"`
	Workers         int           `mapstructure:"workers" validate:"required,min=1"`
	QueueSize       int           `mapstructure:"queueSize" validate:"required,min=1"`
}

type SmtpConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
	From string `mapstructure:"from" validate:"omitempty,email"`
}

type TwilioConfig struct {
	AccountSid          string `mapstructure:"accountSid"`
	AuthToken           string `mapstructure:"authToken" validate:"required_with=AccountSid"`
	MessagingServiceSid string `mapstructure:"messagingServiceSid" validate:"required_with=AccountSid"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

type GeoapifyConfig struct {
	ApiKey         string `mapstructure:"apiKey"`
	BaseURL        string `mapstructure:"baseUrl" validate:"omitempty,url"`
	HelpPointsFile string `mapstructure:"helpPointsFile"`
}

type ElevenLabsConfig struct {
	ApiKey  string `mapstructure:"apiKey"`
	BaseURL string `mapstructure:"baseUrl" validate:"omitempty,url"`
	VoiceID string `mapstructure:"voiceId"`
	ModelID string `mapstructure:"modelId"`
}
