package recommend

// seatHeightBufferMM is added on top of the estimated comfortable seat height.
const seatHeightBufferMM = 80

// MaxSeatHeight estimates the tallest seat, in millimetres, a rider of the
// given height in centimetres can manage. The coefficients are empirical and
// must stay as they are.
func MaxSeatHeight(riderHeightCM float64) float64 {
	return (riderHeightCM*0.46-3)*10 + seatHeightBufferMM
}
