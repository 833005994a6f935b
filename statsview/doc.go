// Package statsview serves live runtime charts of the simulator process
// (heap, goroutines, GC pauses) through github.com/go-echarts/statsview.
//
// The server is compiled in only with the statsview build tag:
//
//	go build -tags statsview ./cmd/thumbsim
//	thumbsim -statsview prog.elf
//
// Charts are then at http://localhost:12600/debug/statsview and the pprof
// index at http://localhost:12600/debug/pprof/.
package statsview
