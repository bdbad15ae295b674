// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package floorwire

// UpdateCRC folds one byte into a running CRC-8/MAXIM accumulator.
func UpdateCRC(crc, b byte) byte {
	crc ^= b
	for i := 0; i < 8; i++ {
		if crc&0x01 != 0 {
			crc = (crc >> 1) ^ crcPolynomial
		} else {
			crc >>= 1
		}
	}
	return crc
}

// CalculateCRC computes the CRC-8/MAXIM checksum for the given data.
// The check value for "123456789" is 0xA1.
func CalculateCRC(data []byte) byte {
	crc := byte(crcInitial)
	for _, b := range data {
		crc = UpdateCRC(crc, b)
	}
	return crc
}
