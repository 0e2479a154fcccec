package bytecode

// Opcodes
const (
	OpNop             Opcode = 0x00
	OpAconstNull      Opcode = 0x01
	OpIconstM1        Opcode = 0x02
	OpIconst0         Opcode = 0x03
	OpIconst1         Opcode = 0x04
	OpIconst2         Opcode = 0x05
	OpIconst3         Opcode = 0x06
	OpIconst4         Opcode = 0x07
	OpIconst5         Opcode = 0x08
	OpLconst0         Opcode = 0x09
	OpLconst1         Opcode = 0x0A
	OpFconst0         Opcode = 0x0B
	OpFconst1         Opcode = 0x0C
	OpFconst2         Opcode = 0x0D
	OpDconst0         Opcode = 0x0E
	OpDconst1         Opcode = 0x0F
	OpBipush          Opcode = 0x10
	OpSipush          Opcode = 0x11
	OpLdc             Opcode = 0x12
	OpLdcW            Opcode = 0x13
	OpLdc2W           Opcode = 0x14
	OpIload           Opcode = 0x15
	OpLload           Opcode = 0x16
	OpFload           Opcode = 0x17
	OpDload           Opcode = 0x18
	OpAload           Opcode = 0x19
	OpIload0          Opcode = 0x1A
	OpIload1          Opcode = 0x1B
	OpIload2          Opcode = 0x1C
	OpIload3          Opcode = 0x1D
	OpLload0          Opcode = 0x1E
	OpLload1          Opcode = 0x1F
	OpLload2          Opcode = 0x20
	OpLload3          Opcode = 0x21
	OpFload0          Opcode = 0x22
	OpFload1          Opcode = 0x23
	OpFload2          Opcode = 0x24
	OpFload3          Opcode = 0x25
	OpDload0          Opcode = 0x26
	OpDload1          Opcode = 0x27
	OpDload2          Opcode = 0x28
	OpDload3          Opcode = 0x29
	OpAload0          Opcode = 0x2A
	OpAload1          Opcode = 0x2B
	OpAload2          Opcode = 0x2C
	OpAload3          Opcode = 0x2D
	OpIaload          Opcode = 0x2E
	OpLaload          Opcode = 0x2F
	OpFaload          Opcode = 0x30
	OpDaload          Opcode = 0x31
	OpAaload          Opcode = 0x32
	OpBaload          Opcode = 0x33
	OpCaload          Opcode = 0x34
	OpSaload          Opcode = 0x35
	OpIstore          Opcode = 0x36
	OpLstore          Opcode = 0x37
	OpFstore          Opcode = 0x38
	OpDstore          Opcode = 0x39
	OpAstore          Opcode = 0x3A
	OpIstore0         Opcode = 0x3B
	OpIstore1         Opcode = 0x3C
	OpIstore2         Opcode = 0x3D
	OpIstore3         Opcode = 0x3E
	OpLstore0         Opcode = 0x3F
	OpLstore1         Opcode = 0x40
	OpLstore2         Opcode = 0x41
	OpLstore3         Opcode = 0x42
	OpFstore0         Opcode = 0x43
	OpFstore1         Opcode = 0x44
	OpFstore2         Opcode = 0x45
	OpFstore3         Opcode = 0x46
	OpDstore0         Opcode = 0x47
	OpDstore1         Opcode = 0x48
	OpDstore2         Opcode = 0x49
	OpDstore3         Opcode = 0x4A
	OpAstore0         Opcode = 0x4B
	OpAstore1         Opcode = 0x4C
	OpAstore2         Opcode = 0x4D
	OpAstore3         Opcode = 0x4E
	OpIastore         Opcode = 0x4F
	OpLastore         Opcode = 0x50
	OpFastore         Opcode = 0x51
	OpDastore         Opcode = 0x52
	OpAastore         Opcode = 0x53
	OpBastore         Opcode = 0x54
	OpCastore         Opcode = 0x55
	OpSastore         Opcode = 0x56
	OpPop             Opcode = 0x57
	OpPop2            Opcode = 0x58
	OpDup             Opcode = 0x59
	OpDupX1           Opcode = 0x5A
	OpDupX2           Opcode = 0x5B
	OpDup2            Opcode = 0x5C
	OpDup2X1          Opcode = 0x5D
	OpDup2X2          Opcode = 0x5E
	OpSwap            Opcode = 0x5F
	OpIadd            Opcode = 0x60
	OpLadd            Opcode = 0x61
	OpFadd            Opcode = 0x62
	OpDadd            Opcode = 0x63
	OpIsub            Opcode = 0x64
	OpLsub            Opcode = 0x65
	OpFsub            Opcode = 0x66
	OpDsub            Opcode = 0x67
	OpImul            Opcode = 0x68
	OpLmul            Opcode = 0x69
	OpFmul            Opcode = 0x6A
	OpDmul            Opcode = 0x6B
	OpIdiv            Opcode = 0x6C
	OpLdiv            Opcode = 0x6D
	OpFdiv            Opcode = 0x6E
	OpDdiv            Opcode = 0x6F
	OpIrem            Opcode = 0x70
	OpLrem            Opcode = 0x71
	OpFrem            Opcode = 0x72
	OpDrem            Opcode = 0x73
	OpIneg            Opcode = 0x74
	OpLneg            Opcode = 0x75
	OpFneg            Opcode = 0x76
	OpDneg            Opcode = 0x77
	OpIshl            Opcode = 0x78
	OpLshl            Opcode = 0x79
	OpIshr            Opcode = 0x7A
	OpLshr            Opcode = 0x7B
	OpIushr           Opcode = 0x7C
	OpLushr           Opcode = 0x7D
	OpIand            Opcode = 0x7E
	OpLand            Opcode = 0x7F
	OpIor             Opcode = 0x80
	OpLor             Opcode = 0x81
	OpIxor            Opcode = 0x82
	OpLxor            Opcode = 0x83
	OpIinc            Opcode = 0x84
	OpI2l             Opcode = 0x85
	OpI2f             Opcode = 0x86
	OpI2d             Opcode = 0x87
	OpL2i             Opcode = 0x88
	OpL2f             Opcode = 0x89
	OpL2d             Opcode = 0x8A
	OpF2i             Opcode = 0x8B
	OpF2l             Opcode = 0x8C
	OpF2d             Opcode = 0x8D
	OpD2i             Opcode = 0x8E
	OpD2l             Opcode = 0x8F
	OpD2f             Opcode = 0x90
	OpI2b             Opcode = 0x91
	OpI2c             Opcode = 0x92
	OpI2s             Opcode = 0x93
	OpLcmp            Opcode = 0x94
	OpFcmpl           Opcode = 0x95
	OpFcmpg           Opcode = 0x96
	OpDcmpl           Opcode = 0x97
	OpDcmpg           Opcode = 0x98
	OpIfeq            Opcode = 0x99
	OpIfne            Opcode = 0x9A
	OpIflt            Opcode = 0x9B
	OpIfge            Opcode = 0x9C
	OpIfgt            Opcode = 0x9D
	OpIfle            Opcode = 0x9E
	OpIfIcmpeq        Opcode = 0x9F
	OpIfIcmpne        Opcode = 0xA0
	OpIfIcmplt        Opcode = 0xA1
	OpIfIcmpge        Opcode = 0xA2
	OpIfIcmpgt        Opcode = 0xA3
	OpIfIcmple        Opcode = 0xA4
	OpIfAcmpeq        Opcode = 0xA5
	OpIfAcmpne        Opcode = 0xA6
	OpGoto            Opcode = 0xA7
	OpJsr             Opcode = 0xA8
	OpRet             Opcode = 0xA9
	OpTableswitch     Opcode = 0xAA
	OpLookupswitch    Opcode = 0xAB
	OpIreturn         Opcode = 0xAC
	OpLreturn         Opcode = 0xAD
	OpFreturn         Opcode = 0xAE
	OpDreturn         Opcode = 0xAF
	OpAreturn         Opcode = 0xB0
	OpReturn          Opcode = 0xB1
	OpGetstatic       Opcode = 0xB2
	OpPutstatic       Opcode = 0xB3
	OpGetfield        Opcode = 0xB4
	OpPutfield        Opcode = 0xB5
	OpInvokevirtual   Opcode = 0xB6
	OpInvokespecial   Opcode = 0xB7
	OpInvokestatic    Opcode = 0xB8
	OpInvokeinterface Opcode = 0xB9
	OpInvokedynamic   Opcode = 0xBA
	OpNew             Opcode = 0xBB
	OpNewarray        Opcode = 0xBC
	OpAnewarray       Opcode = 0xBD
	OpArraylength     Opcode = 0xBE
	OpAthrow          Opcode = 0xBF
	OpCheckcast       Opcode = 0xC0
	OpInstanceof      Opcode = 0xC1
	OpMonitorenter    Opcode = 0xC2
	OpMonitorexit     Opcode = 0xC3
	OpWide            Opcode = 0xC4
	OpMultianewarray  Opcode = 0xC5
	OpIfnull          Opcode = 0xC6
	OpIfnonnull       Opcode = 0xC7
	OpGotoW           Opcode = 0xC8
	OpJsrW            Opcode = 0xC9
)

var opcodeTable = [256]*Info{
	OpNop:             {Name: "nop", Shape: ShapeNone, Pop: 0, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpAconstNull:      {Name: "aconst_null", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpIconstM1:        {Name: "iconst_m1", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpIconst0:         {Name: "iconst_0", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpIconst1:         {Name: "iconst_1", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpIconst2:         {Name: "iconst_2", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpIconst3:         {Name: "iconst_3", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpIconst4:         {Name: "iconst_4", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpIconst5:         {Name: "iconst_5", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLconst0:         {Name: "lconst_0", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpLconst1:         {Name: "lconst_1", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpFconst0:         {Name: "fconst_0", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpFconst1:         {Name: "fconst_1", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpFconst2:         {Name: "fconst_2", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpDconst0:         {Name: "dconst_0", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpDconst1:         {Name: "dconst_1", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpBipush:          {Name: "bipush", Shape: ShapeByte, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpSipush:          {Name: "sipush", Shape: ShapeShort, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLdc:             {Name: "ldc", Shape: ShapeConst8, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLdcW:            {Name: "ldc_w", Shape: ShapeConst16, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLdc2W:           {Name: "ldc2_w", Shape: ShapeConst16, Pop: 0, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIload:           {Name: "iload", Shape: ShapeLocal, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: -1},
	OpLload:           {Name: "lload", Shape: ShapeLocal, Pop: 0, Push: 2, LocalWidth: 2, ImplicitLocal: -1},
	OpFload:           {Name: "fload", Shape: ShapeLocal, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: -1},
	OpDload:           {Name: "dload", Shape: ShapeLocal, Pop: 0, Push: 2, LocalWidth: 2, ImplicitLocal: -1},
	OpAload:           {Name: "aload", Shape: ShapeLocal, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: -1},
	OpIload0:          {Name: "iload_0", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 0},
	OpIload1:          {Name: "iload_1", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 1},
	OpIload2:          {Name: "iload_2", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 2},
	OpIload3:          {Name: "iload_3", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 3},
	OpLload0:          {Name: "lload_0", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 2, ImplicitLocal: 0},
	OpLload1:          {Name: "lload_1", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 2, ImplicitLocal: 1},
	OpLload2:          {Name: "lload_2", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 2, ImplicitLocal: 2},
	OpLload3:          {Name: "lload_3", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 2, ImplicitLocal: 3},
	OpFload0:          {Name: "fload_0", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 0},
	OpFload1:          {Name: "fload_1", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 1},
	OpFload2:          {Name: "fload_2", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 2},
	OpFload3:          {Name: "fload_3", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 3},
	OpDload0:          {Name: "dload_0", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 2, ImplicitLocal: 0},
	OpDload1:          {Name: "dload_1", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 2, ImplicitLocal: 1},
	OpDload2:          {Name: "dload_2", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 2, ImplicitLocal: 2},
	OpDload3:          {Name: "dload_3", Shape: ShapeNone, Pop: 0, Push: 2, LocalWidth: 2, ImplicitLocal: 3},
	OpAload0:          {Name: "aload_0", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 0},
	OpAload1:          {Name: "aload_1", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 1},
	OpAload2:          {Name: "aload_2", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 2},
	OpAload3:          {Name: "aload_3", Shape: ShapeNone, Pop: 0, Push: 1, LocalWidth: 1, ImplicitLocal: 3},
	OpIaload:          {Name: "iaload", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLaload:          {Name: "laload", Shape: ShapeNone, Pop: 2, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpFaload:          {Name: "faload", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpDaload:          {Name: "daload", Shape: ShapeNone, Pop: 2, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpAaload:          {Name: "aaload", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpBaload:          {Name: "baload", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpCaload:          {Name: "caload", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpSaload:          {Name: "saload", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpIstore:          {Name: "istore", Shape: ShapeLocal, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: -1},
	OpLstore:          {Name: "lstore", Shape: ShapeLocal, Pop: 2, Push: 0, LocalWidth: 2, ImplicitLocal: -1},
	OpFstore:          {Name: "fstore", Shape: ShapeLocal, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: -1},
	OpDstore:          {Name: "dstore", Shape: ShapeLocal, Pop: 2, Push: 0, LocalWidth: 2, ImplicitLocal: -1},
	OpAstore:          {Name: "astore", Shape: ShapeLocal, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: -1},
	OpIstore0:         {Name: "istore_0", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 0},
	OpIstore1:         {Name: "istore_1", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 1},
	OpIstore2:         {Name: "istore_2", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 2},
	OpIstore3:         {Name: "istore_3", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 3},
	OpLstore0:         {Name: "lstore_0", Shape: ShapeNone, Pop: 2, Push: 0, LocalWidth: 2, ImplicitLocal: 0},
	OpLstore1:         {Name: "lstore_1", Shape: ShapeNone, Pop: 2, Push: 0, LocalWidth: 2, ImplicitLocal: 1},
	OpLstore2:         {Name: "lstore_2", Shape: ShapeNone, Pop: 2, Push: 0, LocalWidth: 2, ImplicitLocal: 2},
	OpLstore3:         {Name: "lstore_3", Shape: ShapeNone, Pop: 2, Push: 0, LocalWidth: 2, ImplicitLocal: 3},
	OpFstore0:         {Name: "fstore_0", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 0},
	OpFstore1:         {Name: "fstore_1", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 1},
	OpFstore2:         {Name: "fstore_2", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 2},
	OpFstore3:         {Name: "fstore_3", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 3},
	OpDstore0:         {Name: "dstore_0", Shape: ShapeNone, Pop: 2, Push: 0, LocalWidth: 2, ImplicitLocal: 0},
	OpDstore1:         {Name: "dstore_1", Shape: ShapeNone, Pop: 2, Push: 0, LocalWidth: 2, ImplicitLocal: 1},
	OpDstore2:         {Name: "dstore_2", Shape: ShapeNone, Pop: 2, Push: 0, LocalWidth: 2, ImplicitLocal: 2},
	OpDstore3:         {Name: "dstore_3", Shape: ShapeNone, Pop: 2, Push: 0, LocalWidth: 2, ImplicitLocal: 3},
	OpAstore0:         {Name: "astore_0", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 0},
	OpAstore1:         {Name: "astore_1", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 1},
	OpAstore2:         {Name: "astore_2", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 2},
	OpAstore3:         {Name: "astore_3", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 1, ImplicitLocal: 3},
	OpIastore:         {Name: "iastore", Shape: ShapeNone, Pop: 3, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpLastore:         {Name: "lastore", Shape: ShapeNone, Pop: 4, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpFastore:         {Name: "fastore", Shape: ShapeNone, Pop: 3, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpDastore:         {Name: "dastore", Shape: ShapeNone, Pop: 4, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpAastore:         {Name: "aastore", Shape: ShapeNone, Pop: 3, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpBastore:         {Name: "bastore", Shape: ShapeNone, Pop: 3, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpCastore:         {Name: "castore", Shape: ShapeNone, Pop: 3, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpSastore:         {Name: "sastore", Shape: ShapeNone, Pop: 3, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpPop:             {Name: "pop", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpPop2:            {Name: "pop2", Shape: ShapeNone, Pop: 2, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpDup:             {Name: "dup", Shape: ShapeNone, Pop: 1, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpDupX1:           {Name: "dup_x1", Shape: ShapeNone, Pop: 2, Push: 3, LocalWidth: 0, ImplicitLocal: -1},
	OpDupX2:           {Name: "dup_x2", Shape: ShapeNone, Pop: 3, Push: 4, LocalWidth: 0, ImplicitLocal: -1},
	OpDup2:            {Name: "dup2", Shape: ShapeNone, Pop: 2, Push: 4, LocalWidth: 0, ImplicitLocal: -1},
	OpDup2X1:          {Name: "dup2_x1", Shape: ShapeNone, Pop: 3, Push: 5, LocalWidth: 0, ImplicitLocal: -1},
	OpDup2X2:          {Name: "dup2_x2", Shape: ShapeNone, Pop: 4, Push: 6, LocalWidth: 0, ImplicitLocal: -1},
	OpSwap:            {Name: "swap", Shape: ShapeNone, Pop: 2, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIadd:            {Name: "iadd", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLadd:            {Name: "ladd", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpFadd:            {Name: "fadd", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpDadd:            {Name: "dadd", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIsub:            {Name: "isub", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLsub:            {Name: "lsub", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpFsub:            {Name: "fsub", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpDsub:            {Name: "dsub", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpImul:            {Name: "imul", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLmul:            {Name: "lmul", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpFmul:            {Name: "fmul", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpDmul:            {Name: "dmul", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIdiv:            {Name: "idiv", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLdiv:            {Name: "ldiv", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpFdiv:            {Name: "fdiv", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpDdiv:            {Name: "ddiv", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIrem:            {Name: "irem", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLrem:            {Name: "lrem", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpFrem:            {Name: "frem", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpDrem:            {Name: "drem", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIneg:            {Name: "ineg", Shape: ShapeNone, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLneg:            {Name: "lneg", Shape: ShapeNone, Pop: 2, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpFneg:            {Name: "fneg", Shape: ShapeNone, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpDneg:            {Name: "dneg", Shape: ShapeNone, Pop: 2, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIshl:            {Name: "ishl", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLshl:            {Name: "lshl", Shape: ShapeNone, Pop: 3, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIshr:            {Name: "ishr", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLshr:            {Name: "lshr", Shape: ShapeNone, Pop: 3, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIushr:           {Name: "iushr", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLushr:           {Name: "lushr", Shape: ShapeNone, Pop: 3, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIand:            {Name: "iand", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLand:            {Name: "land", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIor:             {Name: "ior", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLor:             {Name: "lor", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIxor:            {Name: "ixor", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLxor:            {Name: "lxor", Shape: ShapeNone, Pop: 4, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpIinc:            {Name: "iinc", Shape: ShapeIinc, Pop: 0, Push: 0, LocalWidth: 1, ImplicitLocal: -1},
	OpI2l:             {Name: "i2l", Shape: ShapeNone, Pop: 1, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpI2f:             {Name: "i2f", Shape: ShapeNone, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpI2d:             {Name: "i2d", Shape: ShapeNone, Pop: 1, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpL2i:             {Name: "l2i", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpL2f:             {Name: "l2f", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpL2d:             {Name: "l2d", Shape: ShapeNone, Pop: 2, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpF2i:             {Name: "f2i", Shape: ShapeNone, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpF2l:             {Name: "f2l", Shape: ShapeNone, Pop: 1, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpF2d:             {Name: "f2d", Shape: ShapeNone, Pop: 1, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpD2i:             {Name: "d2i", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpD2l:             {Name: "d2l", Shape: ShapeNone, Pop: 2, Push: 2, LocalWidth: 0, ImplicitLocal: -1},
	OpD2f:             {Name: "d2f", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpI2b:             {Name: "i2b", Shape: ShapeNone, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpI2c:             {Name: "i2c", Shape: ShapeNone, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpI2s:             {Name: "i2s", Shape: ShapeNone, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpLcmp:            {Name: "lcmp", Shape: ShapeNone, Pop: 4, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpFcmpl:           {Name: "fcmpl", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpFcmpg:           {Name: "fcmpg", Shape: ShapeNone, Pop: 2, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpDcmpl:           {Name: "dcmpl", Shape: ShapeNone, Pop: 4, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpDcmpg:           {Name: "dcmpg", Shape: ShapeNone, Pop: 4, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpIfeq:            {Name: "ifeq", Shape: ShapeBranch, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfne:            {Name: "ifne", Shape: ShapeBranch, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIflt:            {Name: "iflt", Shape: ShapeBranch, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfge:            {Name: "ifge", Shape: ShapeBranch, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfgt:            {Name: "ifgt", Shape: ShapeBranch, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfle:            {Name: "ifle", Shape: ShapeBranch, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfIcmpeq:        {Name: "if_icmpeq", Shape: ShapeBranch, Pop: 2, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfIcmpne:        {Name: "if_icmpne", Shape: ShapeBranch, Pop: 2, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfIcmplt:        {Name: "if_icmplt", Shape: ShapeBranch, Pop: 2, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfIcmpge:        {Name: "if_icmpge", Shape: ShapeBranch, Pop: 2, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfIcmpgt:        {Name: "if_icmpgt", Shape: ShapeBranch, Pop: 2, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfIcmple:        {Name: "if_icmple", Shape: ShapeBranch, Pop: 2, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfAcmpeq:        {Name: "if_acmpeq", Shape: ShapeBranch, Pop: 2, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfAcmpne:        {Name: "if_acmpne", Shape: ShapeBranch, Pop: 2, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpGoto:            {Name: "goto", Shape: ShapeBranch, Pop: 0, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpJsr:             {Name: "jsr", Shape: ShapeBranch, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpRet:             {Name: "ret", Shape: ShapeLocal, Pop: 0, Push: 0, LocalWidth: 1, ImplicitLocal: -1},
	OpTableswitch:     {Name: "tableswitch", Shape: ShapeTableSwitch, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpLookupswitch:    {Name: "lookupswitch", Shape: ShapeLookupSwitch, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIreturn:         {Name: "ireturn", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpLreturn:         {Name: "lreturn", Shape: ShapeNone, Pop: 2, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpFreturn:         {Name: "freturn", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpDreturn:         {Name: "dreturn", Shape: ShapeNone, Pop: 2, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpAreturn:         {Name: "areturn", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpReturn:          {Name: "return", Shape: ShapeNone, Pop: 0, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpGetstatic:       {Name: "getstatic", Shape: ShapeConst16, Pop: -1, Push: -1, LocalWidth: 0, ImplicitLocal: -1},
	OpPutstatic:       {Name: "putstatic", Shape: ShapeConst16, Pop: -1, Push: -1, LocalWidth: 0, ImplicitLocal: -1},
	OpGetfield:        {Name: "getfield", Shape: ShapeConst16, Pop: -1, Push: -1, LocalWidth: 0, ImplicitLocal: -1},
	OpPutfield:        {Name: "putfield", Shape: ShapeConst16, Pop: -1, Push: -1, LocalWidth: 0, ImplicitLocal: -1},
	OpInvokevirtual:   {Name: "invokevirtual", Shape: ShapeConst16, Pop: -1, Push: -1, LocalWidth: 0, ImplicitLocal: -1},
	OpInvokespecial:   {Name: "invokespecial", Shape: ShapeConst16, Pop: -1, Push: -1, LocalWidth: 0, ImplicitLocal: -1},
	OpInvokestatic:    {Name: "invokestatic", Shape: ShapeConst16, Pop: -1, Push: -1, LocalWidth: 0, ImplicitLocal: -1},
	OpInvokeinterface: {Name: "invokeinterface", Shape: ShapeInvokeInterface, Pop: -1, Push: -1, LocalWidth: 0, ImplicitLocal: -1},
	OpInvokedynamic:   {Name: "invokedynamic", Shape: ShapeInvokeDynamic, Pop: -1, Push: -1, LocalWidth: 0, ImplicitLocal: -1},
	OpNew:             {Name: "new", Shape: ShapeConst16, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpNewarray:        {Name: "newarray", Shape: ShapeNewArray, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpAnewarray:       {Name: "anewarray", Shape: ShapeConst16, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpArraylength:     {Name: "arraylength", Shape: ShapeNone, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpAthrow:          {Name: "athrow", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpCheckcast:       {Name: "checkcast", Shape: ShapeConst16, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpInstanceof:      {Name: "instanceof", Shape: ShapeConst16, Pop: 1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpMonitorenter:    {Name: "monitorenter", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpMonitorexit:     {Name: "monitorexit", Shape: ShapeNone, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpWide:            {Name: "wide", Shape: ShapeWide, Pop: 0, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpMultianewarray:  {Name: "multianewarray", Shape: ShapeMultiANewArray, Pop: -1, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
	OpIfnull:          {Name: "ifnull", Shape: ShapeBranch, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpIfnonnull:       {Name: "ifnonnull", Shape: ShapeBranch, Pop: 1, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpGotoW:           {Name: "goto_w", Shape: ShapeBranchWide, Pop: 0, Push: 0, LocalWidth: 0, ImplicitLocal: -1},
	OpJsrW:            {Name: "jsr_w", Shape: ShapeBranchWide, Pop: 0, Push: 1, LocalWidth: 0, ImplicitLocal: -1},
}
