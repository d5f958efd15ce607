package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: YAML defaults for that board. Credentials are left blank and come from
// the environment or a .env file.
// -----------------------------------------------------------------------------

const cfgSunton = `
device: sunton-esp32s3
wifi:
  max_retries: 10
  connect_timeout: 30s
ftp:
  user: esp32
  port: 21
  settle_delay: 500ms
time:
  servers: [pool.ntp.org]
  timezone: UTC
  query_timeout: 5s
  resync: 1h
log:
  lines: 50
  line_bytes: 100
monitor:
  tick: 1s
  storage_check_every: 10
storage:
  internal: /data
  removable: /sdcard
  format_internal: true
`

const cfgPico = `
device: pico
wifi:
  max_retries: 10
  connect_timeout: 30s
ftp:
  user: pico
  port: 21
  settle_delay: 500ms
time:
  servers: [pool.ntp.org]
  timezone: UTC
  query_timeout: 5s
  resync: 6h
log:
  lines: 30
  line_bytes: 80
monitor:
  tick: 1s
  storage_check_every: 10
storage:
  internal: /data
  format_internal: true
`

const cfgHost = `
device: host
wifi:
  max_retries: 10
  connect_timeout: 30s
ftp:
  user: esp32
  port: 2121
  settle_delay: 500ms
time:
  servers: [pool.ntp.org, time.google.com]
  timezone: Local
  query_timeout: 5s
  resync: 1h
log:
  lines: 50
  line_bytes: 100
monitor:
  tick: 1s
  storage_check_every: 10
storage:
  internal: ./run/data
  removable: ./run/sdcard
  format_internal: true
`

var embeddedConfigs = map[string][]byte{
	"sunton-esp32s3": []byte(cfgSunton),
	"pico":           []byte(cfgPico),
	"host":           []byte(cfgHost),
}
