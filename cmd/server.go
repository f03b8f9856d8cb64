/*
Copyright © 2021 Edmond Cotterell

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"strings"
	"time"

	devconfig "github.com/Daskott/luna/dev/config"
	"github.com/Daskott/luna/server"
	"github.com/Daskott/luna/shared"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start a luna server",
	Long: `The luna server runs the check-in timers and alerts emergency contacts
when a timer expires without being cancelled.`,
	Run: func(cmd *cobra.Command, args []string) {
		config, err := loadServerConfig(serverConfigFile, isDevEnv)
		cobra.CheckErr(err)

		server.Start(config)
	},
}

var serverConfigFile string

// envBindings maps config keys to the environment variables that may override them.
var envBindings = map[string]string{
	"smtp.host":                     "SMTP_HOST",
	"smtp.port":                     "SMTP_PORT",
	"smtp.user":                     "SMTP_USER",
	"smtp.pass":                     "SMTP_PASS",
	"smtp.from":                     "FROM_EMAIL",
	"geoapify.apiKey":               "GEOAPIFY_KEY",
	"elevenlabs.apiKey":             "ELEVENLABS_API_KEY",
	"google.applicationCredentials": "GOOGLE_APPLICATION_CREDENTIALS",
	"twilio.accountSid":             "TWILIO_ACCOUNT_SID",
	"twilio.authToken":              "TWILIO_AUTH_TOKEN",
	"twilio.messagingServiceSid":    "TWILIO_MESSAGING_SERVICE_SID",
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")
}

// loadServerConfig reads the server config from configFile, or from the bundled
// development config when devMode is set & no file is given.
func loadServerConfig(configFile string, devMode bool) (*shared.ServerConfig, error) {
	config := viper.New()
	setDefaults(config)

	for key, env := range envBindings {
		if err := config.BindEnv(key, env); err != nil {
			return nil, err
		}
	}
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv() // read in environment variables that match

	var err error
	switch {
	case configFile != "":
		config.SetConfigFile(configFile)
		err = config.ReadInConfig()
	case devMode:
		config.SetConfigType("yaml")
		err = config.ReadConfig(strings.NewReader(devconfig.SERVER_YML))
	}
	if err != nil {
		return nil, formattedError("error reading server config file: %v", err)
	}

	serverConfig := &shared.ServerConfig{}
	if err = config.Unmarshal(serverConfig); err != nil {
		return nil, formattedError("error parsing server config: %v", err)
	}

	return serverConfig, nil
}

func setDefaults(config *viper.Viper) {
	config.SetDefault("luna.staticDir", "static")
	config.SetDefault("luna.listener.port", 5003)
	config.SetDefault("luna.cron.timeZone", "UTC")
	config.SetDefault("luna.cron.statsSchedule", "*/1 * * * *")
	config.SetDefault("luna.watcher.tick", time.Second)
	config.SetDefault("luna.watcher.deliveryTimeout", 10*time.Second)
	config.SetDefault("luna.watcher.workers", 4)
	config.SetDefault("luna.watcher.queueSize", 256)
	config.SetDefault("smtp.host", "smtp.gmail.com")
	config.SetDefault("smtp.port", 587)
	config.SetDefault("geoapify.helpPointsFile", "data/help_poles.json")
}
