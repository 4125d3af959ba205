// Package voice implements the voice capture session behind the report form's
// microphone button.
//
// A Session mediates between three capabilities supplied by the caller: a
// continuous speech recognizer, a microphone whose frames are both metered and
// recorded, and a speech synthesizer. Results, levels and notices are delivered
// in order on the channel returned by Updates. Each capture is owned by exactly
// one Session and is torn down on StopCapture or Close.
package voice
