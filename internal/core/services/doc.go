// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// All state lives in the driven stores; services hold only caches
// and in-process coordination such as rate limiters and run loops.
package services
