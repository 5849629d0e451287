// Package docker holds the webapp container build: the nginx config and
// the entrypoint script that substitutes SONIC_APP_* runtime configuration
// into the served files before nginx starts. The Go file exists so the
// entrypoint tests live next to the script they exercise.
package docker
