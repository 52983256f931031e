// Package logx is httpcron's structured logging, built on zerolog.
//
// Components receive a Logger at construction instead of reaching for a
// global. Console output is human-readable with a short file:line caller;
// file output is one JSON object per line.
package logx
