// Package jobs tracks processes left running in the background and reclaims
// terminated children when SIGCHLD arrives.
package jobs
