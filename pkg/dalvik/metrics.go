package dalvik

// Usage summarises the registers a method body needs.
type Usage struct {
	// Registers is one past the highest register touched, counting both
	// halves of a pair.
	Registers int
	// Outs is the largest argument word count of any invoke.
	Outs int
}

// RegisterUsage scans code for register operands.
func RegisterUsage(code []Instruction) Usage {
	var u Usage
	touch := func(r uint16, width int) {
		if end := int(r) + width; end > u.Registers {
			u.Registers = end
		}
	}
	for i := range code {
		in := &code[i]
		info := in.Info()
		if in.Payload != nil || info == nil {
			continue
		}
		switch info.Format {
		case F35c, F3rc, F45cc, F4rcc:
			for _, r := range in.Regs {
				touch(r, 1)
			}
			if info.Flags&FlagInvoke != 0 && len(in.Regs) > u.Outs {
				u.Outs = len(in.Regs)
			}
			continue
		}
		for j, r := range in.Regs {
			width := 1
			if info.Wide&(1<<j) != 0 {
				width = 2
			}
			touch(r, width)
		}
	}
	return u
}

// InsSize returns the number of argument words for a method with the
// given parameter type descriptors, plus one for this when the method is
// not static.
func InsSize(params []string, static bool) int {
	n := 0
	if !static {
		n++
	}
	for _, p := range params {
		if p == "J" || p == "D" {
			n += 2
		} else {
			n++
		}
	}
	return n
}
