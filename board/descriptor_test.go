// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2020
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

package board

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLMS7002MMimoDescriptor(t *testing.T) {
	d, err := Load("lms7002m_mimo.yaml")
	require.NoError(t, err)

	require.Equal(t, 2, d.NumChannels)
	require.Greater(t, d.CgenMaxHz, 0.0)
	require.NotEmpty(t, d.MinGatewareVersion)
	require.NotEmpty(t, d.AntennaNames(false))
	require.NotEmpty(t, d.AntennaNames(true))
	require.True(t, d.SamplingRateHz.LowHz < d.SamplingRateHz.HighHz)
	require.True(t, d.FrequencyHz.LowHz < d.FrequencyHz.HighHz)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not: [valid, yaml: structure"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does-not-exist.yaml")
	require.Error(t, err)
}

// vim: foldmethod=marker
