// Package telemetry reads the event frames a free-running FPGA board streams
// over its serial link.
//
// A frame is the header "BAAB", six hexadecimal fields separated by '\r' and
// the footer "FEEF":
//
//	BAAB 0000\r0001\r0002\r0003\r8000\r0005 FEEF
//
// Fields are paired into the values of a Frame: seconds = f0<<16 + f1,
// counter = f2<<16 + f3*10, PPS delta = (f4-32767)*10 and pulses = f5.
package telemetry
