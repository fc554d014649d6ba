package ta

import "math"

func Last(s []float64, position int) float64 {
	return s[len(s)-1-position]
}

func LastValues(s []float64, size int) []float64 {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// Mean 算术平均值，空切片返回 0
func Mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

// Lowest 最近 period 个值中的最小值
func Lowest(s []float64, period int) float64 {
	arr := LastValues(s, period)
	minVal := arr[0]

	for _, value := range arr {
		if value < minVal {
			minVal = value
		}
	}
	return minVal
}

// Highest 最近 period 个值中的最大值
func Highest(s []float64, period int) float64 {
	arr := LastValues(s, period)
	maxVal := arr[0]

	for _, value := range arr {
		if value > maxVal {
			maxVal = value
		}
	}
	return maxVal
}

// LastDefined 从尾部向前找第一个非 NaN 值，找不到时返回 NaN
func LastDefined(s []float64) float64 {
	for i := len(s) - 1; i >= 0; i-- {
		if !math.IsNaN(s[i]) {
			return s[i]
		}
	}
	return math.NaN()
}
