// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package armproto

// EncodeFrame builds the wire frame for a set of joint angles.
// There is no escaping or checksum; angles are sent as raw bytes.
func EncodeFrame(a JointAngles) [FrameSize]byte {
	return [FrameSize]byte{HeaderByte, a.Base, a.Shoulder, a.Elbow, a.Claw, FooterByte}
}

// AppendFrame appends the wire frame for a to dst
func AppendFrame(dst []byte, a JointAngles) []byte {
	frame := EncodeFrame(a)
	return append(dst, frame[:]...)
}
