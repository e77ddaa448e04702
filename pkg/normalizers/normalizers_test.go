package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/models"
)

func TestNormalizeMD5(t *testing.T) {
	t.Run("UppercaseIsLowered", func(t *testing.T) {
		got, err := NormalizeMD5("E34A8899EF6468B74F8A1048419CCC8B")
		require.NoError(t, err)
		assert.Equal(t, "e34a8899ef6468b74f8a1048419ccc8b", got)
	})

	t.Run("WrongLengthFails", func(t *testing.T) {
		_, err := NormalizeMD5("e34asdfa8899ef6468b74f8a1048419ccc8b")
		assert.Error(t, err)
		assert.True(t, errs.IsValidation(err))
	})

	t.Run("NonHexFails", func(t *testing.T) {
		_, err := NormalizeMD5("e34a8899ef6468b74f8a1048419ccc8z")
		assert.Error(t, err)
	})

	t.Run("EmptyFails", func(t *testing.T) {
		_, err := NormalizeMD5("")
		require.Error(t, err)
		var ve *errs.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, errs.ReasonEmpty, ve.Reason)
	})
}

func TestNormalizeDomain(t *testing.T) {
	t.Run("UppercaseIsLowered", func(t *testing.T) {
		got, err := NormalizeDomain("WWW.TEST.COM")
		require.NoError(t, err)
		assert.Equal(t, "www.test.com", got)
	})

	t.Run("SchemeFails", func(t *testing.T) {
		_, err := NormalizeDomain("http://www.test.com")
		assert.Error(t, err)
	})

	t.Run("PathAndQueryFails", func(t *testing.T) {
		_, err := NormalizeDomain("http://www.test.com/aPage?x=1")
		assert.Error(t, err)
	})

	t.Run("BarePathFails", func(t *testing.T) {
		_, err := NormalizeDomain("www.test.com/aPage")
		assert.Error(t, err)
	})

	t.Run("EmptyFails", func(t *testing.T) {
		_, err := NormalizeDomain("")
		assert.Error(t, err)
	})

	t.Run("InvalidHostnameFails", func(t *testing.T) {
		_, err := NormalizeDomain("-bad-.example.com")
		assert.Error(t, err)
	})
}

func TestNormalizeEmail(t *testing.T) {
	t.Run("UppercaseIsLowered", func(t *testing.T) {
		got, err := NormalizeEmail("Jane.Doe@Example.COM")
		require.NoError(t, err)
		assert.Equal(t, "jane.doe@example.com", got)
	})

	t.Run("MissingAtFails", func(t *testing.T) {
		_, err := NormalizeEmail("jane.doe.example.com")
		assert.Error(t, err)
	})

	t.Run("EmptyFails", func(t *testing.T) {
		_, err := NormalizeEmail("")
		assert.Error(t, err)
	})

	// The address grammar accepts a host with no dot. Kept deliberately;
	// see the normalizer doc comment.
	t.Run("HostWithoutDotIsAccepted", func(t *testing.T) {
		got, err := NormalizeEmail("user@host")
		require.NoError(t, err)
		assert.Equal(t, "user@host", got)
	})

	t.Run("DisplayNameFormFails", func(t *testing.T) {
		_, err := NormalizeEmail("Jane Doe <jane@example.com>")
		assert.Error(t, err)
	})
}

func TestNormalizePhone(t *testing.T) {
	t.Run("SeparatorsStripped", func(t *testing.T) {
		got, err := NormalizePhone("(555) 867-5309")
		require.NoError(t, err)
		assert.Equal(t, "5558675309", got)
	})

	t.Run("CountryCodePreserved", func(t *testing.T) {
		got, err := NormalizePhone("+1 555 867 5309")
		require.NoError(t, err)
		assert.Equal(t, "+15558675309", got)
	})

	// Best-effort: implausible digit counts pass through un-rejected.
	t.Run("ShortNumberPasses", func(t *testing.T) {
		got, err := NormalizePhone("911")
		require.NoError(t, err)
		assert.Equal(t, "911", got)
	})

	t.Run("LettersFail", func(t *testing.T) {
		_, err := NormalizePhone("555-CALL-NOW")
		assert.Error(t, err)
	})

	t.Run("EmptyFails", func(t *testing.T) {
		_, err := NormalizePhone("")
		assert.Error(t, err)
	})
}

func TestNormalizeUSBID(t *testing.T) {
	t.Run("ColonSeparatorPreserved", func(t *testing.T) {
		got, err := NormalizeUSBID("0202:AAFF")
		require.NoError(t, err)
		assert.Equal(t, "0202:aaff", got)
	})

	t.Run("DashSeparatorPreserved", func(t *testing.T) {
		got, err := NormalizeUSBID("0202-AAFF")
		require.NoError(t, err)
		assert.Equal(t, "0202-aaff", got)
	})

	t.Run("SpaceSeparatorPreserved", func(t *testing.T) {
		got, err := NormalizeUSBID("0202 AAFF")
		require.NoError(t, err)
		assert.Equal(t, "0202 aaff", got)
	})

	// Canonical rule: unseparated input is lower-cased like every other
	// form. A historical caller expected "0202AAFF" back unchanged; that
	// expectation is the documented discrepancy, not the behavior here.
	t.Run("UnseparatedIsLowered", func(t *testing.T) {
		got, err := NormalizeUSBID("0202AAFF")
		require.NoError(t, err)
		assert.Equal(t, "0202aaff", got)
	})

	t.Run("WrongShapeFails", func(t *testing.T) {
		for _, bad := range []string{"0202", "0202:aaf", "0202::aaff", "zzzz:aaff", ""} {
			_, err := NormalizeUSBID(bad)
			assert.Error(t, err, "input %q", bad)
		}
	})
}

func TestNormalizeDispatch(t *testing.T) {
	t.Run("UnknownTypeFails", func(t *testing.T) {
		_, err := Normalize(999, "anything")
		require.Error(t, err)
		var ve *errs.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, errs.ReasonUnknownType, ve.Reason)
	})

	t.Run("DispatchesByTypeID", func(t *testing.T) {
		got, err := Normalize(models.FilesTypeID, "E34A8899EF6468B74F8A1048419CCC8B")
		require.NoError(t, err)
		assert.Equal(t, "e34a8899ef6468b74f8a1048419ccc8b", got)
	})
}

func TestNormalizeIdempotent(t *testing.T) {
	cases := map[int][]string{
		models.FilesTypeID:  {"E34A8899EF6468B74F8A1048419CCC8B", "e34a8899ef6468b74f8a1048419ccc8b"},
		models.DomainTypeID: {"WWW.TEST.COM", "example.org"},
		models.EmailTypeID:  {"Jane.Doe@Example.COM", "user@host"},
		models.PhoneTypeID:  {"(555) 867-5309", "+1 555 867 5309"},
		models.USBIDTypeID:  {"0202:AAFF", "0202AAFF"},
	}

	for typeID, values := range cases {
		for _, v := range values {
			once, err := Normalize(typeID, v)
			require.NoError(t, err, "type %d value %q", typeID, v)
			twice, err := Normalize(typeID, once)
			require.NoError(t, err, "type %d value %q", typeID, once)
			assert.Equal(t, once, twice, "type %d value %q not idempotent", typeID, v)
		}
	}
}
