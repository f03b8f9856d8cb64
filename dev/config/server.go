package config

// SERVER_YML is the server config used with --dev when no --sconfig is given.
const SERVER_YML = `
luna:
  staticDir: "static"
  listener:
    port: 5003
  cron:
    timeZone: "America/Toronto"
    statsSchedule: "*/1 * * * *"
  watcher:
    tick: 1s
    deliveryTimeout: 10s
    workers: 2
    queueSize: 64

smtp:
  host: "localhost"
  port: 1025
  from: "luna@localhost"

geoapify:
  helpPointsFile: "data/help_poles.json"

elevenlabs:
  voiceId: "xctasy8XvGp2cVO9HL9k"
  modelId: "eleven_multilingual_v2"

google:
  storage:
    bucket:
    prefix: "luna-dev"
  applicationCredentials:

twilio:
  accountSid:
  authToken:
  messagingServiceSid:
`
