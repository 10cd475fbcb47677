package practice

import "strconv"

var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
	"thirty": 30, "forty": 40, "fifty": 50, "sixty": 60, "seventy": 70,
	"eighty": 80, "ninety": 90, "hundred": 100, "thousand": 1000,
	"first": 1, "second": 2, "third": 3,
}

// numberKey maps digits and English number words to a shared key, and
// anything else to itself.
func numberKey(tok string) string {
	if n, ok := numberWords[tok]; ok {
		return "#" + strconv.Itoa(n)
	}
	if n, err := strconv.Atoi(tok); err == nil {
		return "#" + strconv.Itoa(n)
	}
	return tok
}
