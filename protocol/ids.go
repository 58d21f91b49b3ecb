package protocol

// Command IDs (host -> firmware)
const (
	CmdTuneSynth uint16 = 1 // run a full calibration pass
	CmdGetTable  uint16 = 2 // dump the calibration table
	CmdGetEvents uint16 = 3 // dump the tuning event ring
	CmdSetDebug  uint16 = 4 // enable=%c
	CmdIdentify  uint16 = 5 // offset=%u count=%c
)

// Response IDs (firmware -> host)
const (
	RespTuneResult uint16 = 64 // cv=%c measured=%c untunable=%c
	RespTableRow   uint16 = 65 // octave=%c codes=%*u
	RespEvent      uint16 = 66 // type=%c cv=%c clock=%u v1=%u v2=%u
	RespDone       uint16 = 67 // cmd=%hu status=%c
	RespIdentify   uint16 = 68 // offset=%u data=%*c
)

// IdentifyChunk caps the dictionary bytes in one identify response, each
// sent as a VLQ argument of at most two bytes.
const IdentifyChunk = 24

// Status codes carried by RespDone
const (
	StatusOK          = 0
	StatusError       = 1
	StatusUnknown     = 2
	StatusStoreFailed = 3
)
