package cart

import "testing"

func TestMBC3_RTC_LatchAndRead(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000)

	m.Write(0x0000, 0x0A) // RAM/RTC enable
	m.rtcSec, m.rtcMin, m.rtcHour = 5, 6, 7
	m.rtcDayLow, m.rtcDayHigh = 0x01, 0x01

	m.Write(0x6000, 0x00)
	m.Write(0x6000, 0x01) // latch

	m.Write(0x4000, 0x08) // select seconds
	if got := m.Read(0xA000); got != 5 {
		t.Fatalf("latched sec got %d want 5", got)
	}

	// Live register changes after the latch must not affect the latched read.
	m.rtcSec = 30
	if got := m.Read(0xA000); got != 5 {
		t.Fatalf("latched sec changed unexpectedly: got %d", got)
	}

	m.Write(0x4000, 0x0B) // day low
	if got := m.Read(0xA000); got != 0x01 {
		t.Fatalf("latched day low got %#02x want 0x01", got)
	}
	m.Write(0x4000, 0x0C) // day high/carry/halt
	got := m.Read(0xA000)
	if got&0x01 == 0 {
		t.Fatalf("latched day-high bit0 not set")
	}
	if got&0x40 != 0 {
		t.Fatalf("halt bit set unexpectedly")
	}
}

func TestMBC3_RTC_AdvancesOncePerSimulatedSecond(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000)
	m.Write(0x0000, 0x0A)

	m.AdvanceRTC(cyclesPerRTCSecond - 1)
	if m.rtcSec != 0 {
		t.Fatalf("rtcSec = %d before a full second has accumulated, want 0", m.rtcSec)
	}
	m.AdvanceRTC(1)
	if m.rtcSec != 1 {
		t.Fatalf("rtcSec = %d after one full second, want 1", m.rtcSec)
	}
}

func TestMBC3_RTC_RollsOverMinutesHoursDays(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000)
	m.rtcSec, m.rtcMin, m.rtcHour = 59, 59, 23
	m.rtcDayLow, m.rtcDayHigh = 0xFF, 0x01 // day 0x1FF

	m.AdvanceRTC(cyclesPerRTCSecond)

	if m.rtcSec != 0 || m.rtcMin != 0 || m.rtcHour != 0 {
		t.Fatalf("clock did not roll over: %02d:%02d:%02d", m.rtcHour, m.rtcMin, m.rtcSec)
	}
	day := int(m.rtcDayHigh&0x01)<<8 | int(m.rtcDayLow)
	if day != 0 {
		t.Fatalf("day = %d after wrapping past 511, want 0", day)
	}
	if m.rtcDayHigh&0x80 == 0 {
		t.Fatalf("expected carry bit set after day overflow")
	}
}

func TestMBC3_RTC_HaltStopsAdvance(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000)
	m.rtcDayHigh = 0x40 // halted
	m.AdvanceRTC(cyclesPerRTCSecond * 5)
	if m.rtcSec != 0 {
		t.Fatalf("rtcSec = %d while halted, want 0", m.rtcSec)
	}
}

func TestMBC3_SaveLoadRAM_PersistsRTC(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000)
	m.rtcSec, m.rtcMin, m.rtcHour = 12, 34, 5
	m.rtcDayLow, m.rtcDayHigh = 0x02, 0x00

	data := m.SaveRAM()
	n := NewMBC3(rom, 0x2000)
	n.LoadRAM(data)

	if n.rtcSec != m.rtcSec || n.rtcMin != m.rtcMin || n.rtcHour != m.rtcHour {
		t.Fatalf("rtc persist mismatch: got %02d:%02d:%02d want %02d:%02d:%02d",
			n.rtcHour, n.rtcMin, n.rtcSec, m.rtcHour, m.rtcMin, m.rtcSec)
	}
	if n.rtcDayLow != m.rtcDayLow || n.rtcDayHigh != m.rtcDayHigh {
		t.Fatalf("rtc day persist mismatch: got %02x/%02x want %02x/%02x",
			n.rtcDayLow, n.rtcDayHigh, m.rtcDayLow, m.rtcDayHigh)
	}
}

func TestMBC3_ROMBanking(t *testing.T) {
	rom := make([]byte, 256*1024)
	for bank := 0; bank < 8; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC3(rom, 0)
	m.Write(0x2000, 0x05)
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank5 read got %#02x want 0x05", got)
	}
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %#02x", got)
	}
}
