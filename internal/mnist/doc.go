// Package mnist loads the MNIST handwritten digit dataset.
//
// The four IDX files are read from a directory, either plain or gzip
// compressed:
//
//	train-images-idx3-ubyte[.gz]
//	train-labels-idx1-ubyte[.gz]
//	t10k-images-idx3-ubyte[.gz]
//	t10k-labels-idx1-ubyte[.gz]
//
// A split whose IDX files are missing is read from mnist_train.csv or
// mnist_test.csv instead (label followed by 784 pixel values per row).
//
// Pixels are scaled to [0, 1] and labels are one-hot encoded. The first
// ValidationSize training images form the validation split.
package mnist
