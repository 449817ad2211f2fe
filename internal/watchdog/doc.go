// Package watchdog talks to the systemd service watchdog.
//
// The agent kicks the watchdog once per poll tick. Token signing can take
// longer than the watchdog interval on slow hardware, so the signing path
// suspends the watchdog by temporarily extending WATCHDOG_USEC and resumes
// it afterwards by restoring the original timeout and kicking immediately.
//
// When the service is not started under a systemd watchdog every call is a
// no-op, which keeps the agent runnable from a shell.
package watchdog
