// Package logx is remindbot's thin structured-logging layer over zerolog.
//
// A Service owns the sink configuration (console, optional JSON file) and can
// swap it at runtime on config reload; loggers handed out by the Service keep
// writing to whatever sinks are currently applied. Events carry a short
// file:line caller and any fields attached with With.
package logx
