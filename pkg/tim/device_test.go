// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tim

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/colastat/pkg/cola"
	"github.com/Thermoquad/colastat/pkg/transport"
)

func TestDevice_NotConnected(t *testing.T) {
	d := New("169.254.219.5:2111")

	assert.False(t, d.IsOpen())
	assert.ErrorIs(t, d.Send("sRN SCdevicestate"), ErrNotConnected)

	_, err := d.Read()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = d.Exchange("sRN SCdevicestate")
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.Equal(t, StateIdle, d.State())
}

func TestDevice_CloseIdempotent(t *testing.T) {
	d := New("169.254.219.5:2111")
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())

	d, _ = openFake(t, scripted(nil))
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
	assert.False(t, d.IsOpen())
	assert.ErrorIs(t, d.Send("sRN DItype"), ErrNotConnected)
}

func TestDevice_OpenFailure(t *testing.T) {
	f := newFakeTiM(t, scripted(nil))
	f.err = errors.New("connection refused")

	d := New("fake:2111", WithDialer(f))
	err := d.Open(context.Background())

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "open", ce.Op)
	assert.Equal(t, "fake:2111", ce.Address)
	assert.True(t, IsConnectionError(err))
	assert.False(t, d.IsOpen())
}

// stubbornConn refuses read timeouts
type stubbornConn struct {
	closed bool
}

func (c *stubbornConn) Read([]byte) (int, error) { return 0, io.EOF }
func (c *stubbornConn) Write(p []byte) (int, error) { return len(p), nil }
func (c *stubbornConn) Close() error {
	c.closed = true
	return nil
}
func (c *stubbornConn) SetReadTimeout(time.Duration) error { return errors.New("deadline not supported") }

type stubbornDialer struct {
	conn *stubbornConn
}

func (s stubbornDialer) Dial(context.Context, string) (transport.Conn, error) {
	return s.conn, nil
}

func TestDevice_OpenReadTimeoutFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	conn := &stubbornConn{}
	d := New("fake:2111", WithDialer(stubbornDialer{conn: conn}), WithMetrics(NewMetrics(reg)))

	err := d.Open(context.Background())

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "open", ce.Op)
	assert.False(t, d.IsOpen())
	assert.True(t, conn.closed)
	assert.EqualValues(t, 1, d.Statistics().Snapshot().ConnectionErrors)
	assert.Equal(t, 1.0, counterValue(t, reg, "colastat_exchange_errors_total", map[string]string{"kind": KindConnection}))
}

func TestDevice_OpenIdempotent(t *testing.T) {
	d, f := openFake(t, scripted(nil))
	require.NoError(t, d.Open(context.Background()))
	assert.Equal(t, 1, f.dials)
}

func TestDevice_Exchange(t *testing.T) {
	d, f := openFake(t, scripted(map[string]string{
		"sRN SCdevicestate": "sRA SCdevicestate 1",
	}))

	answer, err := d.Exchange("sRN SCdevicestate")
	require.NoError(t, err)
	assert.Equal(t, "sRA SCdevicestate 1", answer)
	assert.Equal(t, StateIdle, d.State())
	assert.Equal(t, []string{"sRN SCdevicestate"}, f.commands())

	c := d.Statistics().Snapshot()
	assert.EqualValues(t, 1, c.TotalExchanges)
	assert.EqualValues(t, 1, c.Answers)
}

func TestDevice_StateTransitions(t *testing.T) {
	d, _ := openFake(t, scripted(map[string]string{"sRN DItype": "sRA DItype E TIM561-2050101"}))

	assert.Equal(t, StateIdle, d.State())
	require.NoError(t, d.Send("sRN DItype"))
	assert.Equal(t, StateAwaitingResponse, d.State())

	_, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, StateIdle, d.State())
}

func TestDevice_DeviceError(t *testing.T) {
	d, _ := openFake(t, scripted(map[string]string{"sMN LMCstartmeas": "sFA 1"}))

	_, err := d.Exchange("sMN LMCstartmeas")

	var de *cola.DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, cola.SopasMethodInAccessDenied, de.Code)
	assert.Equal(t, "Sopas_Error_METHODIN_ACCESSDENIED", de.Name)
	assert.Equal(t, "Wrong userlevel, access to method not allowed", de.Description)
	assert.Equal(t, StateIdle, d.State(), "a device error is still an answer")
	assert.True(t, d.IsOpen())

	c := d.Statistics().Snapshot()
	assert.EqualValues(t, 1, c.DeviceErrors)
	assert.EqualValues(t, 1, c.DeviceErrorCodes["Sopas_Error_METHODIN_ACCESSDENIED"])
}

func TestDevice_ProtocolViolation(t *testing.T) {
	d, _ := openFake(t, scripted(map[string]string{"sRN DItype": "sFA 1F"}))

	_, err := d.Exchange("sRN DItype")
	var pv *cola.ProtocolViolation
	require.ErrorAs(t, err, &pv)
	assert.False(t, cola.IsDeviceError(err))
	assert.EqualValues(t, 1, d.Statistics().Snapshot().ProtocolViolations)
}

func TestDevice_MalformedTelegram(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want any
	}{
		{"missing STX", []byte("sRA DItype\x03"), new(*cola.FramingError)},
		{"missing ETX", []byte("\x02sRA DItype"), new(*cola.FramingError)},
		{"invalid utf8", []byte("\x02sRA \xff\xfe\x03"), new(*cola.EncodingError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := openFake(t, func(string) []byte { return tt.raw })

			_, err := d.Exchange("sRN DItype")
			var mt *MalformedTelegram
			require.ErrorAs(t, err, &mt)
			assert.Equal(t, tt.raw, mt.Telegram)
			assert.ErrorAs(t, err, tt.want)
			assert.Equal(t, StateIdle, d.State())
		})
	}
}

func TestDevice_Timeout(t *testing.T) {
	d, _ := openFake(t, func(string) []byte { return nil }, WithTimeout(30*time.Millisecond))

	_, err := d.Exchange("sRN LMDscandata")

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "sRN LMDscandata", te.Command)
	assert.Equal(t, 30*time.Millisecond, te.Timeout)
	assert.True(t, IsTimeout(err))
	assert.True(t, d.IsOpen(), "a timeout keeps the connection")
	assert.Equal(t, StateAwaitingResponse, d.State())
	assert.EqualValues(t, 1, d.Statistics().Snapshot().Timeouts)
}

func TestDevice_ConnectionLost(t *testing.T) {
	d, f := openFake(t, scripted(nil))
	f.server.Close()

	err := d.Send("sRN DItype")

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "send", ce.Op)
	assert.False(t, d.IsOpen(), "the session is dropped")
	assert.ErrorIs(t, d.Send("sRN DItype"), ErrNotConnected)
}

func TestDevice_PeerClosesBeforeAnswer(t *testing.T) {
	var f *fakeTiM
	f = newFakeTiM(t, func(string) []byte {
		f.server.Close()
		return nil
	})
	d := New("fake:2111", WithDialer(f), WithTimeout(time.Second))
	require.NoError(t, d.Open(context.Background()))

	_, err := d.Exchange("sRN DItype")
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "read", ce.Op)
	assert.False(t, d.IsOpen())
}

func TestDevice_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	d, _ := openFake(t, scripted(map[string]string{
		"sRN SCdevicestate": "sRA SCdevicestate 1",
		"sMN mSCreboot":     "sFA 1",
	}), WithMetrics(m))

	_, err := d.Exchange("sRN SCdevicestate")
	require.NoError(t, err)
	_, err = d.Exchange("sMN mSCreboot")
	require.Error(t, err)

	assert.Equal(t, 2.0, counterValue(t, reg, "colastat_telegrams_total", map[string]string{"direction": "tx"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "colastat_telegrams_total", map[string]string{"direction": "rx"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "colastat_exchange_errors_total", map[string]string{"kind": KindDevice}))
	assert.Equal(t, 1.0, counterValue(t, reg, "colastat_device_errors_total", map[string]string{"code": "Sopas_Error_METHODIN_ACCESSDENIED"}))
	assert.EqualValues(t, 2, histogramCount(t, reg, "colastat_exchange_duration_seconds"))
}

func TestNewMetrics_NilRegistry(t *testing.T) {
	m := NewMetrics(nil)
	require.NotNil(t, m)

	var none *Metrics
	assert.NotPanics(t, func() {
		none.telegram(directionTx)
		none.observe(time.Second)
		none.exchangeError(errors.New("x"))
		none.scan()
	})
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	return 0
}
