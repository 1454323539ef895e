// Command cifar10 converts the CIFAR-10 binary batch files to the internal
// dataset format and writes the default model config. The raw files should be
// downloaded and unpacked under the cifar-10 folder in the data dir first.
package main

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"os"
	"path"
	"strings"

	"github.com/chunduriv/vision/img"
	"github.com/chunduriv/vision/nnet"
	"github.com/chunduriv/vision/preset"
	"github.com/schollz/progressbar/v3"
)

const (
	imageWidth  = 32
	imageHeight = 32
	imageSize   = imageWidth * imageHeight
	imageBytes  = imageSize*3 + 1
	validSplit  = 45000
)

func main() {
	classes, err := readClasses("batches.meta.txt")
	nnet.CheckErr(err)

	train, err := loadBatch("data_batch_1.bin", classes)
	nnet.CheckErr(err)
	for i := 2; i <= 5; i++ {
		d, err := loadBatch(fmt.Sprintf("data_batch_%d.bin", i), classes)
		nnet.CheckErr(err)
		train.Labels = append(train.Labels, d.Labels...)
		train.Images = append(train.Images, d.Images...)
	}
	test, err := loadBatch("test_batch.bin", classes)
	nnet.CheckErr(err)

	mean, std := img.GetStats(train.Images, test.Images)
	train.Mean, train.StdDev = mean, std
	test.Mean, test.StdDev = mean, std

	valid := train.Slice(validSplit, train.Len())
	train = train.Slice(0, validSplit)

	err = nnet.SaveDataFile(train, "cifar10_train")
	nnet.CheckErr(err)
	err = nnet.SaveDataFile(valid, "cifar10_valid")
	nnet.CheckErr(err)
	err = nnet.SaveDataFile(test, "cifar10_test")
	nnet.CheckErr(err)

	conf, err := preset.Build("cifar10_mlp")
	nnet.CheckErr(err)
	err = conf.SaveDefault("cifar10_mlp")
	nnet.CheckErr(err)
}

// load batch of cifar-10 images and labels in binary format
func loadBatch(name string, classes []string) (*img.Data, error) {
	pathName := path.Join(nnet.DataDir, "cifar-10", name)
	f, err := os.Open(pathName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	labels := make([]int32, 0, 10000)
	images := make([]img.Image, 0, 10000)
	bytes := make([]uint8, imageBytes)
	bar := progressbar.Default(10000, "read "+name)
	for {
		n, err := io.ReadFull(f, bytes)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading from %s: %s", pathName, err)
		}
		if n != imageBytes {
			return nil, fmt.Errorf("incomplete read: expected %d bytes got %d", imageBytes, n)
		}
		labels = append(labels, int32(bytes[0]))
		m := img.NewRGB(imageWidth, imageHeight)
		for j := 0; j < imageSize; j++ {
			col := color.NRGBA{R: bytes[1+j], G: bytes[1+imageSize+j], B: bytes[1+imageSize*2+j], A: 255}
			m.Set(j%imageWidth, j/imageWidth, col)
		}
		images = append(images, m)
		bar.Add(1)
	}
	return img.NewData(classes, labels, images), nil
}

// load class descriptions from file
func readClasses(name string) ([]string, error) {
	pathName := path.Join(nnet.DataDir, "cifar-10", name)
	f, err := os.Open(pathName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	classes := []string{}
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line != "" {
			classes = append(classes, line)
		}
	}
	return classes, s.Err()
}
