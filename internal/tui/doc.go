// Package tui is the terminal front-end of the configuration flow. It talks
// to the service over the REST API, so it can run on any machine that
// reaches the API port.
//
// The form screen lists every area with its fans; toggling a fan marks it
// as excluded. Submitting creates the configuration entry on first use and
// saves the options afterwards. The aggregates screen shows the live
// per-area counts and turns area switches on and off.
package tui
