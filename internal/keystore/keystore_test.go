package keystore

import "testing"

func TestWrapUnwrapRoundTrip(t *testing.T) {
	kp, err := Generate(1024)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	pw, envelope, err := kp.WrapRandomPassword()
	if err != nil {
		t.Fatalf("WrapRandomPassword: %v", err)
	}
	if pw.Length() != randomKeyLength {
		t.Fatalf("session password length = %d, want %d", pw.Length(), randomKeyLength)
	}

	recovered, err := kp.UnwrapPassword(envelope)
	if err != nil {
		t.Fatalf("UnwrapPassword: %v", err)
	}

	a, b := pw.Deploy(), recovered.Deploy()
	defer pw.Undeploy()
	defer recovered.Undeploy()
	if string(a) != string(b) {
		t.Fatalf("recovered password mismatch")
	}
}

func TestUnwrapWithWrongKeyFails(t *testing.T) {
	kp1, _ := Generate(1024)
	kp2, _ := Generate(1024)

	_, envelope, err := kp1.WrapRandomPassword()
	if err != nil {
		t.Fatalf("WrapRandomPassword: %v", err)
	}

	if _, err := kp2.UnwrapPassword(envelope); err == nil {
		t.Fatalf("expected error unwrapping with mismatched key")
	}
}

func TestExportImportPrivateRoundTrip(t *testing.T) {
	kp, _ := Generate(1024)
	wire, err := kp.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	imported, err := ImportPrivate(wire)
	if err != nil {
		t.Fatalf("ImportPrivate: %v", err)
	}
	if imported.IsPublic() {
		t.Fatalf("imported private key reports IsPublic() true")
	}

	_, envelope, err := kp.WrapRandomPassword()
	if err != nil {
		t.Fatalf("WrapRandomPassword: %v", err)
	}
	if _, err := imported.UnwrapPassword(envelope); err != nil {
		t.Fatalf("UnwrapPassword with imported key: %v", err)
	}
}

func TestExportImportPublicRoundTrip(t *testing.T) {
	kp, _ := Generate(1024)
	wire, err := kp.ExportPublic()
	if err != nil {
		t.Fatalf("ExportPublic: %v", err)
	}

	pubOnly, err := ImportPublic(wire)
	if err != nil {
		t.Fatalf("ImportPublic: %v", err)
	}
	if !pubOnly.IsPublic() {
		t.Fatalf("public-only key reports IsPublic() false")
	}

	if _, _, err := pubOnly.WrapRandomPassword(); err != nil {
		t.Fatalf("WrapRandomPassword with public-only key: %v", err)
	}
	if _, err := pubOnly.UnwrapPassword(nil); err == nil {
		t.Fatalf("expected error unwrapping with public-only key")
	}
}
