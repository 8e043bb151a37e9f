package bytecode

// StackEffect returns the net change in operand stack depth caused by
// executing op with the given arg, per spec.md §6
// ("stack_effect(opcode, arg)"). internal/stackval does not call it: the
// simulator pushes and pops explicitly per opcode semantics.
func StackEffect(op Opcode, arg int) int {
	switch op {
	case OpNop, OpResume, OpPopBlock, OpReraise:
		return 0
	case OpPopTop, OpPopExcept, OpStoreFast, OpStoreName, OpStoreGlobal, OpStoreDeref,
		OpDeleteFast, OpDeleteName, OpReturnValue, OpRaiseVarargs:
		return -1
	case OpReturnConst:
		return 0
	case OpLoadConst, OpLoadFast, OpLoadName, OpLoadGlobal, OpLoadDeref, OpLoadClosure,
		OpLoadBuildCls, OpPredeclaredPlaceholder:
		return 1
	case OpLoadAttr, OpLoadMethod:
		return 1 // LOAD_METHOD is counted like LOAD_ATTR: one value pushed
	case OpStoreAttr:
		return -2
	case OpStoreSubscr:
		return -3
	case OpStoreSlice:
		return -4
	case OpDupTop:
		return 1
	case OpCopy, OpSwap:
		return 0
	case OpBinaryOp, OpCompareOp, OpIsOp, OpContainsOp:
		return -1
	case OpUnaryNot, OpUnaryNeg, OpUnaryPos, OpUnaryInv:
		return 0
	case OpBuildTuple, OpBuildList, OpBuildSet:
		return 1 - arg
	case OpBuildMap:
		return 1 - 2*arg
	case OpBuildConstKeyMap:
		return -arg // pops arg values + 1 keys-tuple, pushes 1 map
	case OpBuildString:
		return 1 - arg
	case OpListExtend, OpSetUpdate, OpDictMerge, OpDictUpdate:
		return -1
	case OpListToTuple:
		return 0
	case OpListAppend, OpSetAdd:
		return -1
	case OpMapAdd:
		return -2
	case OpCall:
		return -arg
	case OpCallFunction:
		return -arg
	case OpCallFunctionKW:
		return -arg - 1
	case OpCallFunctionEx:
		if arg&1 != 0 {
			return -3
		}
		return -2
	case OpCallMethod:
		return -arg - 1
	case OpKwNames, OpPushNull, OpPrecall:
		return 0
	case OpMakeFunction:
		return 0
	case OpSetFunctionAttribute:
		return -1
	case OpJumpAbsolute, OpJumpForward, OpJumpBackward:
		return 0
	case OpPopJumpIfTrue, OpPopJumpIfFalse, OpPopJumpIfNone, OpPopJumpIfNotNone:
		return -1
	case OpJumpIfTrueOrPop, OpJumpIfFalseOrPop:
		return 0 // conditional: 0 on taken, -1 on fallthrough; caller handles per-edge
	case OpForIter:
		return 1 // fallthrough pushes the next element; exit edge pops the iterator, handled per-edge
	case OpGetIter:
		return 0
	case OpImportName:
		return -1
	case OpImportFrom:
		return 1
	case OpImportStar:
		return -1
	case OpUnpackSequence:
		return arg - 1
	case OpGetAiter:
		return 0
	case OpGetAnext:
		return 1
	case OpBeforeAsyncWith, OpBeforeWith:
		return 1
	case OpSend:
		return 0
	case OpYieldFrom, OpYieldValue:
		return 0
	case OpGetAwaitable:
		return 0
	case OpEndAsyncFor:
		return -1
	case OpGetLen:
		return 1
	case OpMatchMapping, OpMatchSequence:
		return 1
	case OpMatchKeys:
		return 1
	case OpMatchClass:
		return -1
	case OpPrintItem:
		return -1
	case OpPrintNewline:
		return 0
	case OpWithExceptStart:
		return 1
	case OpCheckExcMatch:
		return 0
	case OpJumpIfNotExcMatch:
		return -2
	case OpToBool:
		return 0
	}
	return 0
}

// OpPredeclaredPlaceholder is not a real CPython opcode; it exists only so
// StackEffect's switch above can share a case arm with OpLoadConst-family
// single-push loads when a detector synthesizes a placeholder load (see
// internal/stackval's lenient-mode Unknown push).
const OpPredeclaredPlaceholder Opcode = "__PLACEHOLDER_LOAD__"
