package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	pcm := make([]byte, 32000) // 1 second at 16 kHz

	wav, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("Failed to encode WAV: %v", err)
	}

	if len(wav) != 44+len(pcm) {
		t.Errorf("Expected %d bytes, got %d", 44+len(pcm), len(wav))
	}

	if err := ValidateWAV(wav); err != nil {
		t.Errorf("Encoded WAV failed validation: %v", err)
	}

	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("Expected sample rate 16000 in header, got %d", rate)
	}

	if channels := binary.LittleEndian.Uint16(wav[22:24]); channels != 1 {
		t.Errorf("Expected 1 channel in header, got %d", channels)
	}

	if dataSize := binary.LittleEndian.Uint32(wav[40:44]); dataSize != uint32(len(pcm)) {
		t.Errorf("Expected data size %d in header, got %d", len(pcm), dataSize)
	}
}

func TestEncodeWAVRejectsBadInput(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("Expected error for empty PCM data")
	}

	if _, err := EncodeWAV([]byte{0x01}, 16000); err == nil {
		t.Error("Expected error for odd PCM length")
	}

	if _, err := EncodeWAV(make([]byte, 320), 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestValidateWAVRejectsGarbage(t *testing.T) {
	if err := ValidateWAV([]byte("too short")); err == nil {
		t.Error("Expected error for truncated data")
	}

	garbage := make([]byte, 64)
	if err := ValidateWAV(garbage); err == nil {
		t.Error("Expected error for non-WAV data")
	}
}

func TestGetWAVDuration(t *testing.T) {
	pcm := make([]byte, 64000) // 2 seconds at 16 kHz

	wav, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("Failed to encode WAV: %v", err)
	}

	duration, err := GetWAVDuration(wav)
	if err != nil {
		t.Fatalf("Failed to get WAV duration: %v", err)
	}

	if duration != 2.0 {
		t.Errorf("Expected duration 2.0s, got %f", duration)
	}
}
