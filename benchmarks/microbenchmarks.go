package benchmarks

import "github.com/sarchlab/thumbsim/insts"

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// targets a specific characteristic of the out-of-order core.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		multiplyChain(),
		memorySequential(),
		storeLoadConflict(),
		functionCalls(),
		callStack(),
		branchTaken(),
		branchAlternating(),
		mixedOperations(),
		loopSimulation(),
		printHello(),
	}
}

// GetCoreBenchmarks returns a minimal set of benchmarks for quick
// validation: a loop, calls and data-dependent branches.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSimulation(),
		functionCalls(),
		branchAlternating(),
	}
}

// ramBase loads the start of RAM into rd.
func ramBase(p *Program, rd uint8) {
	p.Emit(EncodeMOVImm(rd, 1), EncodeLSLImm(rd, rd, 29))
}

// 1. Arithmetic Sequential - independent operations fill the ALUs
func arithmeticSequential() Benchmark {
	var p Program
	for i := 0; i < 20; i++ {
		p.Emit(EncodeADDImm(uint8(i%5), 1))
	}
	p.Emit(EncodeSVC(0))

	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "20 independent ADDs over 5 registers - measures ALU throughput",
		Program:      p,
		ExpectedExit: 4, // R0 = 0 + 4*1
	}
}

// 2. Dependency Chain - every instruction waits for the previous one
func dependencyChain() Benchmark {
	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDs (R0 = R0 + 1) - measures wakeup latency",
		Program:      buildDependencyChain(20),
		ExpectedExit: 20,
	}
}

func buildDependencyChain(n int) Program {
	var p Program
	for i := 0; i < n; i++ {
		p.Emit(EncodeADDImm(0, 1))
	}
	p.Emit(EncodeSVC(0))
	return p
}

// 3. Multiply Chain - dependent multiplies expose the multiply latency
func multiplyChain() Benchmark {
	var p Program
	p.Emit(EncodeMOVImm(0, 1), EncodeMOVImm(1, 2))
	for i := 0; i < 7; i++ {
		p.Emit(EncodeMUL(0, 1))
	}
	p.Emit(EncodeSVC(0))

	return Benchmark{
		Name:         "multiply_chain",
		Description:  "7 dependent MULs - measures multiply latency",
		Program:      p,
		ExpectedExit: 128,
	}
}

// 4. Memory Sequential - store/load pairs to different words
func memorySequential() Benchmark {
	var p Program
	ramBase(&p, 1)
	p.Emit(EncodeMOVImm(0, 42))
	for i := uint8(0); i < 10; i++ {
		p.Emit(EncodeSTR(0, 1, 4*i), EncodeLDR(0, 1, 4*i))
	}
	p.Emit(EncodeSVC(0))

	return Benchmark{
		Name:         "memory_sequential",
		Description:  "10 store/load pairs to sequential words - measures load queue ordering",
		Program:      p,
		ExpectedExit: 42,
	}
}

// 5. Store-Load Conflict - every load reads the word just stored
func storeLoadConflict() Benchmark {
	var p Program
	ramBase(&p, 1)
	p.Emit(EncodeMOVImm(0, 0))
	for i := 0; i < 8; i++ {
		p.Emit(EncodeSTR(0, 1, 0), EncodeLDR(0, 1, 0), EncodeADDImm(0, 1))
	}
	p.Emit(EncodeSVC(0))

	return Benchmark{
		Name:         "store_load_conflict",
		Description:  "8 increments through one memory word - loads wait for store commit",
		Program:      p,
		ExpectedExit: 8,
	}
}

// 6. Function Calls - BL/BX pairs
func functionCalls() Benchmark {
	var p Program
	p.Emit(EncodeMOVImm(0, 0))
	calls := make([]int, 3)
	for i := range calls {
		calls[i] = p.Emit(0, 0)
	}
	p.Emit(EncodeSVC(0))

	f := p.Emit(EncodeADDImm(0, 1), EncodeBX(insts.RegLR))
	for _, call := range calls {
		bl := EncodeBL(BranchOffset(call, f))
		p.Patch(call, bl[0])
		p.Patch(call+1, bl[1])
	}

	return Benchmark{
		Name:         "function_calls",
		Description:  "3 calls to a leaf function - measures indirect return recovery",
		Program:      p,
		ExpectedExit: 3,
	}
}

// 7. Call Stack - PUSH/POP expand into micro-op sequences
func callStack() Benchmark {
	var p Program
	p.Emit(EncodeMOVImm(0, 6))
	call := p.Emit(0, 0)
	p.Emit(EncodeSVC(0))

	f := p.Emit(
		EncodePUSH(1<<4, true),
		EncodeMOVImm(4, 7),
		EncodeMUL(0, 4),
		EncodePOP(1<<4, true),
	)
	bl := EncodeBL(BranchOffset(call, f))
	p.Patch(call, bl[0])
	p.Patch(call+1, bl[1])

	return Benchmark{
		Name:         "call_stack",
		Description:  "call through PUSH {R4, LR} / POP {R4, PC} - measures micro-op expansion",
		Program:      p,
		ExpectedExit: 42,
	}
}

// 8. Branch Taken - a counted loop whose back edge is taken 9 of 10 times
func branchTaken() Benchmark {
	var p Program
	p.Emit(EncodeMOVImm(0, 0), EncodeMOVImm(1, 10))
	loop := p.Emit(EncodeADDImm(0, 1), EncodeSUBImm(1, 1))
	p.Emit(EncodeBCond(insts.CondNE, BranchOffset(p.Here(), loop)))
	p.Emit(EncodeSVC(0))

	return Benchmark{
		Name:         "branch_taken",
		Description:  "10-iteration loop - measures backward branch prediction",
		Program:      p,
		ExpectedExit: 10,
	}
}

// 9. Branch Alternating - a forward branch that flips every iteration
func branchAlternating() Benchmark {
	var p Program
	p.Emit(EncodeMOVImm(0, 0), EncodeMOVImm(1, 16))
	loop := p.Emit(EncodeMOVImm(3, 1), EncodeAND(3, 1))
	skip := p.Emit(0) // BEQ next
	p.Emit(EncodeADDImm(0, 1))
	next := p.Emit(EncodeSUBImm(1, 1))
	p.Emit(EncodeBCond(insts.CondNE, BranchOffset(p.Here(), loop)))
	p.Emit(EncodeSVC(0))
	p.Patch(skip, EncodeBCond(insts.CondEQ, BranchOffset(skip, next)))

	return Benchmark{
		Name:         "branch_alternating",
		Description:  "16-iteration loop with a branch on the counter parity - measures mispredict recovery",
		Program:      p,
		ExpectedExit: 8,
	}
}

// 10. Mixed Operations - ALU, multiply and memory together
func mixedOperations() Benchmark {
	var p Program
	p.Emit(EncodeMOVImm(0, 3), EncodeMOVImm(1, 5), EncodeMUL(1, 0))
	ramBase(&p, 2)
	p.Emit(
		EncodeSTR(1, 2, 0),
		EncodeADDReg(0, 0, 1),
		EncodeLDR(3, 2, 0),
		EncodeADDReg(0, 0, 3),
		EncodeSUBImm(0, 3),
		EncodeSVC(0),
	)

	return Benchmark{
		Name:         "mixed_operations",
		Description:  "ALU, MUL, store and load mix - measures overlap across units",
		Program:      p,
		ExpectedExit: 30,
	}
}

// 11. Loop Simulation - fill an array, then sum it
func loopSimulation() Benchmark {
	var p Program
	ramBase(&p, 1)
	p.Emit(EncodeMOVImm(2, 0), EncodeMOVImm(0, 0))

	fill := p.Emit(
		EncodeSTR(2, 1, 0),
		EncodeADDImm(1, 4),
		EncodeADDImm(2, 1),
		EncodeCMPImm(2, 10),
	)
	p.Emit(EncodeBCond(insts.CondNE, BranchOffset(p.Here(), fill)))

	p.Emit(EncodeSUBImm(1, 40), EncodeMOVImm(2, 10))
	sum := p.Emit(
		EncodeLDR(3, 1, 0),
		EncodeADDReg(0, 0, 3),
		EncodeADDImm(1, 4),
		EncodeSUBImm(2, 1),
	)
	p.Emit(EncodeBCond(insts.CondNE, BranchOffset(p.Here(), sum)))
	p.Emit(EncodeSVC(0))

	return Benchmark{
		Name:         "loop_simulation",
		Description:  "fill 10 words then sum them - loops with loads and stores",
		Program:      p,
		ExpectedExit: 45,
	}
}

// 12. Print Hello - serializing supervisor calls with output
func printHello() Benchmark {
	var p Program
	mov := p.Emit(0)
	p.Emit(EncodeSVC(1), EncodeMOVImm(0, 0), EncodeSVC(0))
	addr := p.CString("hello")
	p.Patch(mov, EncodeMOVImm(0, uint8(addr)))

	return Benchmark{
		Name:           "print_hello",
		Description:    "puts through SVC #1 - measures fetch serialization",
		Program:        p,
		ExpectedExit:   0,
		ExpectedOutput: "hello",
	}
}
