// Package delete removes source objects once a copy has been verified.
package delete
