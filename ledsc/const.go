package ledsc

// Frame characters of the LEDSC ASCII protocol.
// A request is [CODE:param]CRC16\r\n and a response is [CODE:status:param...]CRC16\r\n
// where CRC16 is the uppercase hex XMODEM checksum of the bracketed frame.
const (
	FrameSTX       = '['
	FrameETX       = ']'
	FrameSeparator = ':'
	FrameCR        = '\r'
	FrameLF        = '\n'
)

const (
	// MaxFrameLen is the longest frame the firmware accepts.
	MaxFrameLen = 256
)

// Command codes understood by the LEDSC_TEENSY_001 firmware.
const (
	CodePrintVersion    = "CPV"
	CodeFullReset       = "CFR"
	CodeEnterBootloader = "CEB"
	CodeSetDebugging    = "CSD"
	CodeSetEffect       = "CSE"
	CodeSetColor        = "CSC"
	CodeSetBrightness   = "CSB"
	CodeSetFirePalette  = "CSFP"
	CodeGetStatus       = "CGS"
)

// Status codes reported by the firmware in the first response parameter.
const (
	StatusSuccess = 0

	StatusCmdParsing     = -100
	StatusMissingSTX     = -101
	StatusMissingETX     = -102
	StatusMissingPSC     = -103
	StatusMissingFraming = -104
	StatusCmdOverflow    = -105
	StatusCmdNotImp      = -106
	StatusCmdUnknown     = -107
	StatusMissingParams  = -108
	StatusParamOutRange  = -109
	StatusCRCMismatch    = -110
	StatusMissingCRC     = -111
)

var statusTexts = map[int]string{
	StatusSuccess:        "success",
	StatusCmdParsing:     "command parsing error",
	StatusMissingSTX:     "missing STX",
	StatusMissingETX:     "missing ETX",
	StatusMissingPSC:     "missing parameter separator",
	StatusMissingFraming: "missing framing character",
	StatusCmdOverflow:    "command buffer overflow",
	StatusCmdNotImp:      "command not implemented",
	StatusCmdUnknown:     "unknown command",
	StatusMissingParams:  "missing parameters",
	StatusParamOutRange:  "parameter out of range",
	StatusCRCMismatch:    "crc16 mismatch",
	StatusMissingCRC:     "crc16 missing",
}

// StatusText returns a human readable description of a firmware status code.
func StatusText(code int) string {
	if s, ok := statusTexts[code]; ok {
		return s
	}
	return "unknown status"
}
