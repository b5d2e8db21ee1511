package automatic

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/facebookresearch/Hanabi-SPARTA/turnplayer"
)

// GenerateSeeds creates n random deal seeds.
func GenerateSeeds(n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = turnplayer.RandomSeed()
	}
	return seeds
}

// SequentialSeeds is first, first+1, ... n seeds in all. A negative first
// seed gives random seeds instead.
func SequentialSeeds(first int64, n int) []int64 {
	if first < 0 {
		return GenerateSeeds(n)
	}
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = first + int64(i)
	}
	return seeds
}

// SaveSeeds writes seeds to a file, one per line.
func SaveSeeds(seeds []int64, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create seed file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	_, err = writer.WriteString("# Deal seeds, one per line\n")
	if err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, seed := range seeds {
		_, err = writer.WriteString(strconv.FormatInt(seed, 10) + "\n")
		if err != nil {
			return fmt.Errorf("failed to write seed %d: %w", i, err)
		}
	}
	return writer.Flush()
}

// LoadSeeds reads seeds written by SaveSeeds. Blank lines and lines
// starting with # are skipped.
func LoadSeeds(path string) ([]int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()

	var seeds []int64
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seed, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse seed at line %d: %w", lineNum, err)
		}
		if seed < 0 {
			return nil, fmt.Errorf("negative seed at line %d", lineNum)
		}
		seeds = append(seeds, seed)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading seed file: %w", err)
	}

	return seeds, nil
}
